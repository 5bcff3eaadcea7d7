package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/MKhiriev/go-immers-client/internal/client"
	"github.com/MKhiriev/go-immers-client/internal/config"
	"github.com/MKhiriev/go-immers-client/internal/logger"
	"github.com/MKhiriev/go-immers-client/models"
)

var (
	buildVersion string
	buildDate    string
	buildCommit  string
)

func main() {
	printBuildInfo()

	var (
		token     = flag.String("token", os.Getenv("IMMERS_TOKEN"), "pre-obtained OAuth2 bearer token")
		homeImmer = flag.String("home", os.Getenv("IMMERS_HOME"), "origin of the issuing immer, e.g. https://home.immer")
		follow    = flag.Bool("follow", false, "stay connected and print inbox activity as it arrives")
	)
	flag.Parse()

	log := logger.NewLogger("immers-cli")
	cfg, err := config.GetClientConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("error getting configs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	messages := make(chan models.Message, 16)
	coordinator, err := client.New(ctx, client.Options{
		Config: *cfg,
		Logger: log,
		Events: client.Events{
			Connected: func(profile models.Profile) {
				fmt.Printf("Logged in as %s (%s)\n", profile.DisplayName, profile.Handle)
			},
			NewMessage: func(message models.Message) {
				select {
				case messages <- message:
				default:
				}
			},
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("error creating client")
	}

	switch {
	case *token != "":
		if !coordinator.LoginWithToken(ctx, *token, *homeImmer, []string{"*"}, nil) {
			log.Fatal().Msg("token rejected by the identity endpoint")
		}
	case coordinator.RestoreSession(ctx):
	default:
		log.Fatal().Msg("no usable session: pass -token and -home, or enable storage with a stored credential")
	}
	defer coordinator.Disconnect()

	friends, err := coordinator.FriendsList(ctx)
	if err != nil {
		log.Err(err).Msg("error fetching friends list")
	}
	fmt.Printf("Friends (%d):\n", len(friends))
	for _, friend := range friends {
		fmt.Printf("  %-30s %-16s %s\n", friend.Profile.Handle, friend.Status, friend.StatusText)
	}

	feed, err := coordinator.Feed(ctx)
	if err != nil {
		log.Err(err).Msg("error fetching feed")
	}
	fmt.Printf("Recent activity (%d):\n", len(feed))
	for _, message := range feed {
		fmt.Printf("  [%s] %s: %s\n", message.Timestamp.Format("2006-01-02 15:04"), message.Sender.Handle, message.Content)
	}

	if !*follow {
		return
	}
	fmt.Println("Watching for new activity, Ctrl-C to quit...")
	for {
		select {
		case message := <-messages:
			fmt.Printf("  [%s] %s: %s\n", message.Timestamp.Format("15:04:05"), message.Sender.Handle, message.Content)
		case <-ctx.Done():
			return
		}
	}
}

func printBuildInfo() {
	if buildVersion == "" {
		buildVersion = "N/A"
	}
	if buildDate == "" {
		buildDate = "N/A"
	}
	if buildCommit == "" {
		buildCommit = "N/A"
	}

	fmt.Printf("Build version: %s\n", buildVersion)
	fmt.Printf("Build date: %s\n", buildDate)
	fmt.Printf("Build commit: %s\n", buildCommit)
}
