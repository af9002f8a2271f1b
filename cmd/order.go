package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/agv/api/orders"
)

var orderOpts struct {
	url      string
	pickup   string
	dropoff  string
	priority string
	slack    time.Duration
	timeout  time.Duration
}

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Submit a manual order to a running simulator",
	RunE:  runOrder,
}

func init() {
	f := orderCmd.Flags()
	f.StringVar(&orderOpts.url, "url", "", "base URL of the API (defaults to the configured address)")
	f.StringVar(&orderOpts.pickup, "pickup", "", "pickup location id")
	f.StringVar(&orderOpts.dropoff, "dropoff", "", "dropoff location id")
	f.StringVarP(&orderOpts.priority, "priority", "p", "", "LOW, NORMAL, HIGH, URGENT or EMERGENCY")
	f.DurationVar(&orderOpts.slack, "slack", 0, "time until the deadline")
	f.DurationVar(&orderOpts.timeout, "timeout", 5*time.Second, "request timeout")
	rootCmd.AddCommand(orderCmd)
}

func runOrder(cmd *cobra.Command, args []string) error {
	base := orderOpts.url
	if base == "" {
		base = "http://localhost" + cfg.API.Addr
	}
	body := orders.CreateRequest{
		Pickup:   orderOpts.pickup,
		Dropoff:  orderOpts.dropoff,
		Priority: strings.ToUpper(orderOpts.priority),
	}
	if cmd.Flags().Changed("slack") {
		s := orderOpts.slack.Seconds()
		body.SlackSeconds = &s
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), orderOpts.timeout)
	defer cancel()
	out, err := postOrder(ctx, http.DefaultClient, strings.TrimRight(base, "/")+"/api/orders", body)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(bytes.TrimSpace(out)))
	return err
}

func postOrder(ctx context.Context, client *http.Client, url string, body orders.CreateRequest) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("order rejected: %s: %s", resp.Status, bytes.TrimSpace(data))
	}
	return data, nil
}
