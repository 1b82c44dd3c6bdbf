package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/aryaregmi0/Kamchaiyo-final-assignment-sub000/internal/event"
)

// api 是 REST 接口的最小客户端。
type api struct {
	base  string
	token string
	http  *http.Client
}

func newAPI(base string) *api {
	return &api{base: base, http: &http.Client{Timeout: 15 * time.Second}}
}

func (a *api) do(ctx context.Context, method, path string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, a.base+"/api/v1"+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type loginResult struct {
	AccessToken string `json:"access_token"`
	User        struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
}

func (a *api) login(ctx context.Context, username, password string) (*loginResult, error) {
	var res loginResult
	err := a.do(ctx, http.MethodPost, "/auth/login", map[string]string{"username": username, "password": password}, &res)
	if err != nil {
		return nil, err
	}
	a.token = res.AccessToken
	return &res, nil
}

type chatInfo struct {
	ID       uint   `json:"id"`
	PeerName string `json:"peer_name"`
}

func (a *api) accessChat(ctx context.Context, userID uint) (*chatInfo, error) {
	var chat chatInfo
	if err := a.do(ctx, http.MethodPost, "/chats", map[string]uint{"user_id": userID}, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (a *api) messages(ctx context.Context, chatID string) ([]event.ChatMessage, error) {
	var res struct {
		Messages []event.ChatMessage `json:"messages"`
	}
	if err := a.do(ctx, http.MethodGet, "/chats/"+chatID+"/messages?limit=20", nil, &res); err != nil {
		return nil, err
	}
	return res.Messages, nil
}

func (a *api) send(ctx context.Context, chatID, content, tempID string) error {
	return a.do(ctx, http.MethodPost, "/chats/"+chatID+"/messages", map[string]string{"content": content, "temp_id": tempID}, nil)
}

func uintString(v uint) string { return strconv.FormatUint(uint64(v), 10) }
