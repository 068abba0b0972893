// cmd/gossipkvctl is the Cobra-built operator CLI for a gossipkv node.
//
// Usage:
//
//	gossipkvctl status                                  --node http://localhost:8090
//	gossipkvctl publish '{"message":"hello"}'            --node http://localhost:8090
//	gossipkvctl events                                   --node http://localhost:8090
//	gossipkvctl peers list                               --node http://localhost:8090
//	gossipkvctl peers add node2 http://localhost:9091    --node http://localhost:8090
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"gossipkv/internal/ctlclient"
)

var (
	nodeAddr string
	timeout  time.Duration
)

func main() {
	root := &cobra.Command{
		Use:   "gossipkvctl",
		Short: "Operator CLI for a gossipkv node",
	}

	root.PersistentFlags().StringVarP(&nodeAddr, "node", "n",
		"http://localhost:8090", "gossipkv node operator API address")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Second,
		"HTTP request timeout")

	root.AddCommand(statusCmd(), eventsCmd(), publishCmd(), peersCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the node's identity, vector clock, and peer count",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctlclient.New(nodeAddr, timeout)
			resp, err := c.Status(context.Background())
			if err != nil {
				return err
			}
			return prettyPrint(resp)
		},
	}
}

func eventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List every event currently held by the node",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctlclient.New(nodeAddr, timeout)
			events, err := c.Events(context.Background())
			if err != nil {
				return err
			}
			return prettyPrint(events)
		},
	}
}

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish <json-payload>",
		Short: "Create a new locally-originated event with the given JSON payload",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload map[string]any
			if err := json.Unmarshal([]byte(args[0]), &payload); err != nil {
				return fmt.Errorf("parse payload: %w", err)
			}
			c := ctlclient.New(nodeAddr, timeout)
			ev, err := c.Publish(context.Background(), payload)
			if err != nil {
				return err
			}
			return prettyPrint(ev)
		},
	}
}

func peersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "peers",
		Short: "Peer roster commands",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the node's known peers",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctlclient.New(nodeAddr, timeout)
			resp, err := c.Peers(context.Background())
			if err != nil {
				return err
			}
			fmt.Println(resp)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <peerId> <gossipURL>",
		Short: "Register a new peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := ctlclient.New(nodeAddr, timeout)
			if err := c.AddPeer(context.Background(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("added peer %q\n", args[0])
			return nil
		},
	})

	return cmd
}

func prettyPrint(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
