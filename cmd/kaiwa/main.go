// Command kaiwa is a minimal terminal chat client. It logs in, opens one
// conversation, prints the projected view of incoming messages, and sends
// lines typed on stdin.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/kaiwa-chat/kaiwa/pkg/apiclient"
	"github.com/kaiwa-chat/kaiwa/pkg/chat"
)

func main() {
	var (
		server       = flag.String("server", "http://localhost:8080", "kaiwa server URL")
		email        = flag.String("email", "", "account email")
		password     = flag.String("password", "", "account password")
		conversation = flag.String("conversation", "", "conversation id to open")
	)
	flag.Parse()

	if *email == "" || *password == "" || *conversation == "" {
		fmt.Fprintln(os.Stderr, "usage: kaiwa -email ... -password ... -conversation ...")
		os.Exit(1)
	}

	conversationID, err := uuid.Parse(*conversation)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid conversation id:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := apiclient.NewClient(*server)
	user, err := client.Login(ctx, *email, *password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "login failed:", err)
		os.Exit(1)
	}

	feed, err := client.Connect(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "connect failed:", err)
		os.Exit(1)
	}
	defer feed.Close()

	pipeline, err := feed.OpenConversation(ctx, user, conversationID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "opening conversation:", err)
		os.Exit(1)
	}
	defer pipeline.Close()

	_ = client.MarkRead(ctx, conversationID)

	for _, msg := range pipeline.Messages() {
		printMessage(pipeline, user.PreferredLanguage, msg.ID)
	}

	go func() {
		if err := feed.Run(ctx); err != nil && ctx.Err() == nil {
			fmt.Fprintln(os.Stderr, "feed closed:", err)
			stop()
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		text := scanner.Text()
		if text == "" {
			continue
		}
		msg, err := pipeline.Send(ctx, text)
		if err != nil {
			fmt.Fprintln(os.Stderr, "send failed:", err)
			continue
		}
		printMessage(pipeline, user.PreferredLanguage, msg.ID)
	}

	// Let in-flight translation merges reach the store before exiting.
	pipeline.Wait()
}

func printMessage(pipeline *chat.Pipeline, viewerLang string, id uuid.UUID) {
	for _, msg := range pipeline.Messages() {
		if msg.ID != id {
			continue
		}
		view := chat.Project(&msg, viewerLang)
		if view.SecondaryText != "" {
			fmt.Printf("[%s] %s: %s (%s)\n", msg.CreatedAt.Format("15:04"), msg.SenderDisplayName, view.PrimaryText, view.SecondaryText)
		} else {
			fmt.Printf("[%s] %s: %s\n", msg.CreatedAt.Format("15:04"), msg.SenderDisplayName, view.PrimaryText)
		}
		return
	}
}
