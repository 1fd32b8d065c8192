package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/placesync/internal/flagx"
	"github.com/dmitrijs2005/placesync/internal/server"
	"github.com/dmitrijs2005/placesync/internal/server/config"
)

// issueTokenFlag returns the user name given with -issue-token, if any.
func issueTokenFlag() string {
	fs := flag.NewFlagSet("issue-token", flag.ContinueOnError)
	userName := fs.String("issue-token", "", "print an access token for the user and exit")
	_ = fs.Parse(flagx.FilterArgs(os.Args[1:], []string{"-issue-token", "--issue-token"}))
	return *userName
}

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if userName := issueTokenFlag(); userName != "" {
		token, err := app.IssueToken(ctx, userName)
		_ = app.Close()
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Println(token)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Printf("%v", err)
	}

}
