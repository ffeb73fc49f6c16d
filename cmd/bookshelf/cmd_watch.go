package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	synchub "bookshelf/internal/sync"
)

var watchTCP string

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live changes to your shelf until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if _, err := a.requireUser(); err != nil {
			return err
		}
		sess := a.client.Session()
		if sess == nil {
			return fmt.Errorf("no stored session")
		}

		var next func() ([]byte, error)
		if watchTCP != "" {
			next, err = dialTCPStream(ctx, watchTCP, sess.AccessToken)
		} else {
			next, err = dialWSStream(ctx, opts.api, sess.AccessToken)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "👀 watching your shelf, Ctrl-C to stop")
		for {
			msg, err := next()
			if err != nil {
				if ctx.Err() != nil || err == io.EOF {
					return nil
				}
				return err
			}
			ev, ok := parseShelfEvent(msg)
			if !ok {
				continue
			}
			if err := a.shelf.Refresh(ctx); err != nil {
				a.log.Warn("refresh after event failed", zap.Error(err))
			}
			title := ev.BookID
			if e, ok := a.shelf.Entry(ev.UserBookID); ok {
				title = e.Book.Title
			}
			fmt.Fprintf(out, "%s %s: %s %d%%\n", ev.At.Local().Format("15:04:05"), title, ev.Status, ev.Progress)
		}
	},
}

// parseShelfEvent skips welcome and other control messages.
func parseShelfEvent(msg []byte) (synchub.ShelfEvent, bool) {
	var ev synchub.ShelfEvent
	if err := json.Unmarshal(msg, &ev); err != nil || ev.UserBookID == "" {
		return ev, false
	}
	return ev, true
}

func dialWSStream(ctx context.Context, api, token string) (func() ([]byte, error), error) {
	endpoint, err := websocketURL(api, "/ws")
	if err != nil {
		return nil, fmt.Errorf("ws url: %w", err)
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", endpoint, err)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return func() ([]byte, error) {
		_, msg, err := conn.ReadMessage()
		return msg, err
	}, nil
}

// dialTCPStream authenticates with the token as the first line, then yields
// one JSON event per line.
func dialTCPStream(ctx context.Context, addr, token string) (func() ([]byte, error), error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if _, err := fmt.Fprintf(conn, "Bearer %s\n", token); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("send token: %w", err)
	}
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	sc := bufio.NewScanner(conn)
	return func() ([]byte, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		line := sc.Bytes()
		if strings.Contains(string(line), `"type":"error"`) {
			return nil, fmt.Errorf("tcp stream rejected: %s", line)
		}
		return append([]byte(nil), line...), nil
	}, nil
}

func websocketURL(baseURL, path string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return (&url.URL{
		Scheme: scheme,
		Host:   u.Host,
		Path:   strings.TrimRight(u.Path, "/") + path,
	}).String(), nil
}

func init() {
	watchCmd.Flags().StringVar(&watchTCP, "tcp", "", "subscribe over the TCP event stream at host:port instead of WebSocket")
}
