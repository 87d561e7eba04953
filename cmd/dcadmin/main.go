// Command dcadmin operates a running doublecubed instance over its
// admin HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/GarrettBeatty/doublecube.gg-sub009/internal/session"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type adminClient struct {
	addr  string
	token string
	http  *http.Client
}

func (c *adminClient) do(method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.addr+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return errors.New(resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func newRootCmd() *cobra.Command {
	c := &adminClient{http: &http.Client{Timeout: 10 * time.Second}}
	root := &cobra.Command{
		Use:           "dcadmin",
		Short:         "Operate a running doublecubed instance",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.addr, "addr", "http://localhost:8447", "service base URL")
	root.PersistentFlags().StringVar(&c.token, "token", os.Getenv("DOUBLECUBE_ADMIN_TOKEN"), "admin bearer token")
	root.AddCommand(newSessionsCmd(c), newDiceCmd(c), newAnalysisCmd(c))
	return root
}

func newSessionsCmd(c *adminClient) *cobra.Command {
	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and manage live sessions",
	}
	sessions.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List live sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var res struct {
				Sessions []session.Summary `json:"sessions"`
			}
			if err := c.do(http.MethodGet, "/admin/sessions", nil, &res); err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tWHITE\tRED\tGAME\tCONNS\tIDLE\tVERSION")
			for _, s := range res.Sessions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%d\n",
					s.ID, s.White, s.Red, s.GameNumber, s.Connections,
					time.Since(s.LastActivity).Round(time.Second), s.Version)
			}
			return w.Flush()
		},
	}, &cobra.Command{
		Use:   "show <session>",
		Short: "Dump a session's full state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if err := c.do(http.MethodGet, "/admin/sessions/"+args[0], nil, &raw); err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, raw, "", "  "); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), buf.String())
			return nil
		},
	}, &cobra.Command{
		Use:   "evict <session>",
		Short: "Checkpoint and remove a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.do(http.MethodDelete, "/admin/sessions/"+args[0], nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "evicted", args[0])
			return nil
		},
	})
	return sessions
}

func newDiceCmd(c *adminClient) *cobra.Command {
	dice := &cobra.Command{
		Use:   "dice",
		Short: "Script dice rolls",
	}
	dice.AddCommand(&cobra.Command{
		Use:   "set <session> <d1> <d2>",
		Short: "Queue the next roll for a session",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ds []uint8
			for _, a := range args[1:] {
				n, err := strconv.Atoi(a)
				if err != nil || n < 1 || n > 6 {
					return fmt.Errorf("die %q must be 1..6", a)
				}
				ds = append(ds, uint8(n))
			}
			body := struct {
				Dice []uint8 `json:"dice"`
			}{Dice: ds}
			if err := c.do(http.MethodPost, "/admin/sessions/"+args[0]+"/dice", body, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "next roll for %s: %d-%d\n", args[0], ds[0], ds[1])
			return nil
		},
	})
	return dice
}

func newAnalysisCmd(c *adminClient) *cobra.Command {
	return &cobra.Command{
		Use:   "analysis on|off <session>",
		Short: "Toggle analysis mode on a session",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var on bool
			switch args[0] {
			case "on":
				on = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			body := struct {
				On bool `json:"on"`
			}{On: on}
			if err := c.do(http.MethodPost, "/admin/sessions/"+args[1]+"/analysis", body, nil); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "analysis %s for %s\n", args[0], args[1])
			return nil
		},
	}
}
