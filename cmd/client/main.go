package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/bridge"
	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
	clog "github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/log"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

// 终端里没有媒体栈，呼叫只交换占位信令。
var placeholderSignal = json.RawMessage(`{"type":"offer","sdp":""}`)

func main() {
	server := pflag.StringP("server", "s", "http://localhost:8080", "server base URL")
	username := pflag.StringP("username", "u", "", "login username")
	password := pflag.StringP("password", "p", os.Getenv("PORTAL_PASSWORD"), "login password (or PORTAL_PASSWORD)")
	logLevel := pflag.String("log-level", "warn", "log level")
	pflag.Parse()
	clog.Init("dev", *logLevel)

	if *username == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: client -u <username> -p <password> [-s http://host:port]")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rest := newAPI(strings.TrimRight(*server, "/"))
	me, err := rest.login(ctx, *username, *password)
	if err != nil {
		log.Fatal().Err(err).Msg("login")
	}

	client := bridge.New(bridge.Options{
		URL: "ws" + strings.TrimPrefix(rest.base, "http") + "/ws",
		OnToast: func(t bridge.Toast) {
			fmt.Printf("[%s] %s\n", t.Kind, t.Message)
		},
		OnMessage: func(m event.ChatMessage) {
			fmt.Printf("  %s: %s\n", m.Sender.Name, m.Content)
		},
		OnCallIncoming: func(e event.CallIncomingEvent) {
			fmt.Printf("[call] incoming call from user %s, /answer %s to accept\n", e.From, e.From)
		},
		OnCallAccepted: func(event.CallAcceptedEvent) {
			fmt.Println("[call] accepted")
		},
		OnStateChange: func(s bridge.State) {
			fmt.Printf("[relay] %s\n", s)
		},
	})
	if err := client.Login(ctx, uintString(me.User.ID), me.AccessToken); err != nil {
		log.Fatal().Err(err).Msg("relay")
	}
	defer func() { _ = client.Logout() }()
	fmt.Printf("logged in as %s (id %d). commands: /chat <userId>, /call <userId>, /answer <userId>, /close, /quit\n", me.User.Name, me.User.ID)

	lines := make(chan string)
	go func() {
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := runLine(ctx, rest, client, strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

// runLine 执行一行输入，返回 true 表示退出。
func runLine(ctx context.Context, rest *api, client *bridge.Client, line string) bool {
	if line == "" {
		return false
	}
	if client.State() != bridge.Connected {
		fmt.Println("relay disconnected, restart to reconnect")
		return true
	}
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	var err error
	switch cmd {
	case "/quit":
		return true
	case "/chat":
		err = openChat(ctx, rest, client, arg)
	case "/close":
		client.CloseChat()
	case "/call":
		err = client.CallUser(arg, placeholderSignal)
	case "/answer":
		err = client.AnswerCall(arg, json.RawMessage(`{"type":"answer","sdp":""}`))
	default:
		chatID := client.Store().Viewing()
		if chatID == "" {
			fmt.Println("no chat open, use /chat <userId>")
			return false
		}
		msg := client.SendOptimistic(chatID, line)
		err = rest.send(ctx, chatID, line, msg.TempID)
	}
	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
	return false
}

func openChat(ctx context.Context, rest *api, client *bridge.Client, arg string) error {
	peer, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", arg)
	}
	chat, err := rest.accessChat(ctx, uint(peer))
	if err != nil {
		return err
	}
	chatID := uintString(chat.ID)
	if err := client.OpenChat(chatID); err != nil {
		return err
	}
	history, err := rest.messages(ctx, chatID)
	if err != nil {
		return err
	}
	client.Store().Load(chatID, history)
	fmt.Printf("chat %s with %s\n", chatID, chat.PeerName)
	for _, m := range history {
		fmt.Printf("  %s: %s\n", m.Sender.Name, m.Content)
	}
	return nil
}
