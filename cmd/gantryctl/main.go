// Command gantryctl is an interactive host REPL for manually exercising
// the serial protocol during bring-up: the operator types a verb and
// space-separated arguments, gantryctl tokenizes the line and re-encodes
// it as a bracketed frame, and prints whatever the firmware replies.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/google/shlex"

	"gantryfw/transport"
)

func main() {
	addr := flag.String("addr", "localhost:9000", "TCP address of the gantryd bridge listener")
	device := flag.String("serial", "", "serial device path instead of the TCP bridge")
	baud := flag.Uint("baud", 115200, "serial baud rate, only with -serial")
	flag.Parse()

	link, err := dial(*device, uint32(*baud), *addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "gantryctl: %v\n", err)
		os.Exit(1)
	}
	defer link.Close()

	go printReplies(link)

	fmt.Println("gantryctl connected to", link.Name())
	fmt.Println(`type a verb and arguments, e.g. "M 100 50" or "G:O"; ctrl-d to quit`)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		payload, err := encodeFrame(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "gantryctl: %v\n", err)
			continue
		}
		if _, err := link.Write([]byte(payload)); err != nil {
			fmt.Fprintf(os.Stderr, "gantryctl: write: %v\n", err)
		}
	}
}

// encodeFrame tokenizes a human-typed line (shlex handles quoting the way
// a shell would) and re-encodes it as the wire grammar of §4.5: VERB,
// optionally followed by ':' and comma-separated arguments.
func encodeFrame(line string) (string, error) {
	tokens, err := shlex.Split(line)
	if err != nil {
		return "", fmt.Errorf("tokenize %q: %w", line, err)
	}
	if len(tokens) == 0 {
		return "", fmt.Errorf("empty command")
	}
	verb := tokens[0]
	args := tokens[1:]
	if len(args) == 0 {
		return "<" + verb + ">", nil
	}
	return "<" + verb + ":" + strings.Join(args, ",") + ">", nil
}

func dial(device string, baud uint32, addr string) (transport.Link, error) {
	if device != "" {
		return transport.NewSerial(device, baud)
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return tcpLink{Conn: conn}, nil
}

type tcpLink struct {
	net.Conn
}

func (t tcpLink) Name() string { return "tcp:" + t.RemoteAddr().String() }

func printReplies(link transport.Link) {
	scanner := bufio.NewScanner(link)
	for scanner.Scan() {
		fmt.Println(scanner.Text())
	}
}
