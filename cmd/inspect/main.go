// Offline inspector for the embedded store. Lists conversations, or dumps
// the turn log of one conversation, without going through the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tutorchat/pkg/logger"
	"tutorchat/pkg/store"
)

func main() {
	var (
		path = flag.String("db", "", "pebble DB path")
		conv = flag.String("conversation", "", "conversation id to dump (lists conversations when empty)")
	)
	flag.Parse()
	if *path == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}
	logger.Init()

	st, err := store.OpenPebble(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", *path, err)
		os.Exit(1)
	}
	defer st.Close()
	ctx := context.Background()

	if *conv == "" {
		convs, err := st.ListConversations(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "list conversations: %v\n", err)
			os.Exit(1)
		}
		for _, c := range convs {
			turns, _ := st.ListTurns(ctx, c.ID)
			fmt.Printf("%s  owner=%s model=%s turns=%d created=%s\n",
				c.ID, c.OwnerID, c.ModelID, len(turns),
				time.Unix(0, c.CreatedAt).UTC().Format(time.RFC3339))
		}
		return
	}

	turns, err := st.ListTurns(ctx, *conv)
	if err != nil {
		fmt.Fprintf(os.Stderr, "list turns: %v\n", err)
		os.Exit(1)
	}
	for _, t := range turns {
		fmt.Printf("[%s] %-9s %s\n",
			time.Unix(0, t.CreatedAt).UTC().Format(time.RFC3339Nano), t.Role, t.Content)
	}
}
