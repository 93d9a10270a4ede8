package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"matchroom_server/auth"
	"matchroom_server/broker"
	"matchroom_server/reconciler"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

type watchFlags struct {
	apiURL   string
	token    string
	redisURL string
	once     bool
}

func NewRootCmd() *cobra.Command {
	flags := &watchFlags{}
	root := &cobra.Command{
		Use:          "matchwatch",
		Short:        "Stream match events for a room or for your account",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.apiURL, "api", "http://localhost:8080", "API base URL")
	root.PersistentFlags().StringVar(&flags.token, "token", os.Getenv("MATCHWATCH_TOKEN"), "bearer token (defaults to $MATCHWATCH_TOKEN)")
	root.PersistentFlags().StringVar(&flags.redisURL, "redis", "", "subscribe through Redis instead of the websocket feed")
	root.PersistentFlags().BoolVar(&flags.once, "once", false, "exit after the first match")

	root.AddCommand(newRoomCmd(flags), newAccountCmd(flags))
	return root
}

func newRoomCmd(flags *watchFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "room [roomId]",
		Short:   "Watch a single room until it matches",
		Example: "matchwatch room 3f0c9a52-... --once",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return errors.New("roomId is required")
			}
			return runWatch(cmd, flags, func(api *reconciler.APIClient, sub reconciler.Subscriber) (*reconciler.Reconciler, error) {
				return reconciler.NewRoomWatcher(api, sub, args[0]), nil
			})
		},
	}
}

func newAccountCmd(flags *watchFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "account",
		Short: "Watch every new match involving the token's user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, flags, func(api *reconciler.APIClient, sub reconciler.Subscriber) (*reconciler.Reconciler, error) {
				userID, err := userFromToken(flags.token)
				if err != nil {
					return nil, err
				}
				return reconciler.NewAccountWatcher(api, sub, userID), nil
			})
		},
	}
}

type watcherFactory func(api *reconciler.APIClient, sub reconciler.Subscriber) (*reconciler.Reconciler, error)

func runWatch(cmd *cobra.Command, flags *watchFlags, build watcherFactory) error {
	if flags.token == "" {
		return errors.New("a token is required (--token or MATCHWATCH_TOKEN)")
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	var sub reconciler.Subscriber = reconciler.NewWebSocketSubscriber(reconciler.WebSocketURL(flags.apiURL), flags.token)
	if flags.redisURL != "" {
		rdb, err := broker.NewClient(ctx, flags.redisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		sub = broker.NewSubscriber(rdb)
	}

	watcher, err := build(reconciler.NewAPIClient(flags.apiURL, flags.token), sub)
	if err != nil {
		return err
	}
	watcher.Start(ctx)
	defer watcher.Stop()

	return printEvents(ctx, cmd, watcher, flags.once)
}

func printEvents(ctx context.Context, cmd *cobra.Command, watcher *reconciler.Reconciler, once bool) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events():
			if !ok {
				return nil
			}
			if err := enc.Encode(event); err != nil {
				return err
			}
			if once {
				return nil
			}
		}
	}
}

// userFromToken reads the user id from the token without verifying it; the
// server verifies it on every call.
func userFromToken(token string) (string, error) {
	claims := &auth.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("unreadable token: %w", err)
	}
	if claims.UserID == "" {
		return "", errors.New("token carries no user id")
	}
	return claims.UserID, nil
}
