// Package smartport drives a SmartPort irrigation controller through a serial attached bridge
// which generates the single-wire signal timing. Commands are newline terminated text:
//
//	START <zone> <minutes>
//	STOP <zone>
//
// and the bridge answers each one with OK or ERR <code>, followed by the verb and zone of the
// command it answers:
//
//	OK START <zone>
//	ERR STOP <zone> <code>
//
// so a reply which arrives after its command timed out is never credited to the next one.
package smartport

import (
	"bufio"
	"context"
	"fmt"
	"github.com/shimmeringbee/irrigation/valve"
	"github.com/shimmeringbee/logwrap"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

const DefaultCommandTimeout = 2 * time.Second

var _ valve.Driver = (*Driver)(nil)

type Driver struct {
	port    io.ReadWriteCloser
	timeout time.Duration
	logger  logwrap.Logger

	lock    sync.Mutex
	replies chan string
}

func New(port io.ReadWriteCloser, timeout time.Duration, l logwrap.Logger) *Driver {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}

	d := &Driver{
		port:    port,
		timeout: timeout,
		logger:  l,
		replies: make(chan string, 8),
	}

	go d.readReplies()

	return d
}

func (d *Driver) readReplies() {
	defer close(d.replies)

	scanner := bufio.NewScanner(d.port)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if len(line) == 0 {
			continue
		}

		select {
		case d.replies <- line:
		default:
			d.logger.LogWarn(context.Background(), "Dropped unsolicited reply from controller bridge.", logwrap.Datum("reply", line))
		}
	}

	if err := scanner.Err(); err != nil {
		d.logger.LogError(context.Background(), "Serial link to controller bridge closed.", logwrap.Err(err))
	}
}

func (d *Driver) Start(ctx context.Context, zone uint8, minutes uint) valve.ErrorCode {
	if code := valve.Validate(zone, minutes); code.Failed() {
		return code
	}

	return d.command(ctx, fmt.Sprintf("START %d %d", zone, minutes))
}

func (d *Driver) Stop(ctx context.Context, zone uint8) valve.ErrorCode {
	if code := valve.Validate(zone, 0); code.Failed() {
		return code
	}

	return d.command(ctx, fmt.Sprintf("STOP %d", zone))
}

func (d *Driver) Close() error {
	return d.port.Close()
}

func (d *Driver) command(ctx context.Context, cmd string) valve.ErrorCode {
	d.lock.Lock()
	defer d.lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	d.drainReplies()

	if _, err := io.WriteString(d.port, cmd+"\n"); err != nil {
		d.logger.LogError(ctx, "Failed to write command to controller bridge.", logwrap.Datum("command", cmd), logwrap.Err(err))
		return valve.LinkFailure
	}

	expected := replyKey(cmd)

	for {
		select {
		case reply, ok := <-d.replies:
			if !ok {
				return valve.LinkFailure
			}

			key, code := parseReply(reply)
			if key != expected {
				d.logger.LogDebug(ctx, "Discarded reply for another command from controller bridge.", logwrap.Datum("command", cmd), logwrap.Datum("reply", reply))
				continue
			}

			return code
		case <-ctx.Done():
			return valve.NoAcknowledge
		}
	}
}

// replyKey is the verb and zone of a command, which the bridge echoes in its reply.
func replyKey(cmd string) string {
	fields := strings.Fields(cmd)
	if len(fields) < 2 {
		return cmd
	}

	return fields[0] + " " + fields[1]
}

// drainReplies discards replies left over from commands which timed out.
func (d *Driver) drainReplies() {
	for {
		select {
		case reply, ok := <-d.replies:
			if !ok {
				return
			}

			d.logger.LogDebug(context.Background(), "Discarded late reply from controller bridge.", logwrap.Datum("reply", reply))
		default:
			return
		}
	}
}

// parseReply returns the key of the command a reply answers and its result. Malformed replies
// have an empty key.
func parseReply(reply string) (string, valve.ErrorCode) {
	fields := strings.Fields(reply)

	switch {
	case len(fields) == 3 && fields[0] == "OK":
		return fields[1] + " " + fields[2], valve.Success
	case len(fields) == 4 && fields[0] == "ERR":
		key := fields[1] + " " + fields[2]

		code, err := strconv.ParseUint(fields[3], 10, 8)
		if err != nil || code == 0 {
			return key, valve.NoAcknowledge
		}

		return key, valve.ErrorCode(code)
	default:
		return "", valve.NoAcknowledge
	}
}
