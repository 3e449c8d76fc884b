package email

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

func TestBuildMessage(t *testing.T) {
	msg := buildMessage("SkillSwap <noreply@example.com>", "bob@example.com", "New Message from Alice\r\nBcc: x@example.com", "line one\nline two")

	if !strings.Contains(msg, "Subject: New Message from Alice  Bcc: x@example.com\r\n") {
		t.Fatalf("subject not flattened:\n%s", msg)
	}
	if strings.Contains(msg, "\r\nBcc:") {
		t.Fatalf("header injection survived:\n%s", msg)
	}
	if !strings.HasSuffix(msg, "\r\n\r\nline one\r\nline two") {
		t.Fatalf("body not normalised:\n%q", msg)
	}
}

// fakeSMTP accepts one session and records the DATA section.
func fakeSMTP(t *testing.T) (addr string, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { fmt.Fprintf(conn, "%s\r\n", s) }
		reply("220 localhost ESMTP")
		var body strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					out <- body.String()
					reply("250 OK")
					continue
				}
				body.WriteString(line)
				continue
			}
			switch cmd := strings.ToUpper(strings.TrimSpace(line)); {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250 localhost")
			case cmd == "DATA":
				inData = true
				reply("354 go ahead")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("250 OK")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestSMTPMailerSend(t *testing.T) {
	addr, data := fakeSMTP(t)
	host, port, _ := net.SplitHostPort(addr)
	var p int
	fmt.Sscan(port, &p)

	m := &SMTPMailer{
		Settings:  SMTPSettings{Host: host, Port: p, TLSMode: "none"},
		FromName:  "SkillSwap",
		FromEmail: "noreply@example.com",
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Send(ctx, "bob@example.com", "New Request: ladder", "Hi Bob"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-data:
		for _, want := range []string{"From: SkillSwap <noreply@example.com>", "To: bob@example.com", "Subject: New Request: ladder", "Hi Bob"} {
			if !strings.Contains(got, want) {
				t.Fatalf("missing %q in:\n%s", want, got)
			}
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("no DATA received")
	}
}

func TestLogMailerNeverFails(t *testing.T) {
	if err := (&LogMailer{}).Send(context.Background(), "bob@example.com", "s", "b"); err != nil {
		t.Fatalf("Send: %v", err)
	}
}
