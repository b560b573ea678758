package oanda

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/rustyeddy/hedger/quotes"
)

// Stream connects to the OANDA pricing stream and pushes every PRICE
// message to h until ctx is done or the connection drops. HEARTBEAT
// messages are ignored.
func (c *Client) Stream(ctx context.Context, instruments []string, h quotes.StreamHandler) error {
	if c.accountID == "" {
		return fmt.Errorf("oanda: missing account id")
	}
	if len(instruments) == 0 {
		return fmt.Errorf("oanda: missing instruments")
	}

	params := url.Values{}
	params.Set("instruments", strings.Join(instruments, ","))
	resp, err := c.get(ctx, c.stream, c.streamURL, fmt.Sprintf("/v3/accounts/%s/pricing/stream", c.accountID), params)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if h.OnConnect != nil {
		h.OnConnect()
	}

	sc := bufio.NewScanner(resp.Body)
	// OANDA stream messages can be long; bump max token
	sc.Buffer(make([]byte, 0, 64*1024), 2*1024*1024)

	for sc.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var msg clientPrice
		if err := json.Unmarshal([]byte(line), &msg); err != nil {
			return fmt.Errorf("oanda: bad json: %w (line=%q)", err, trimForErr(line))
		}
		if strings.ToUpper(msg.Type) != "PRICE" {
			continue
		}
		p, err := msg.toPoint()
		if err != nil {
			continue
		}
		if h.OnPrice != nil {
			h.OnPrice(p)
		}
	}

	if err := sc.Err(); err != nil {
		// if ctx was cancelled, surface that instead
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return err
	}
	return nil
}
