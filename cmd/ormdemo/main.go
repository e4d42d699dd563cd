// Command ormdemo creates, seeds and queries the demo shop database through the active record engine.
//
// Connection settings come from the environment:
//
//	ORM_DRIVER=sqlite|postgres ORM_CONN=sqldb|sqlx|pgxpool ORM_DSN=...
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/AntonStoeckl/active-record-orm-go/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
