// Package main connects to the notification push stream and prints every
// frame it receives. It is a manual check that pushes reach a user.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
)

type envelope struct {
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func main() {
	host := flag.String("host", "localhost:8380", "API server host")
	token := flag.String("token", "", "Bearer token; minted from -secret and -user when empty")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "JWT secret used to mint a token")
	userID := flag.Uint("user", 0, "User ID to mint a token for")
	issuer := flag.String("issuer", "quill-api", "JWT issuer")
	audience := flag.String("audience", "quill-client", "JWT audience")
	flag.Parse()

	if *token == "" {
		if *secret == "" || *userID == 0 {
			log.Fatal("either -token or both -secret and -user are required")
		}
		minted, err := mintToken(*secret, *issuer, *audience, *userID)
		if err != nil {
			log.Fatalf("mint token: %v", err)
		}
		*token = minted
	}

	u := url.URL{Scheme: "ws", Host: *host, Path: "/api/ws", RawQuery: url.Values{"token": {*token}}.Encode()}
	log.Printf("connecting to %s", u.Redacted())

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			log.Fatalf("dial failed with status %d: %v", resp.StatusCode, err)
		}
		log.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	log.Println("connected, waiting for notifications")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Printf("read: %v", err)
				}
				return
			}
			printFrame(msg)
		}
	}()

	select {
	case <-done:
	case <-interrupt:
		log.Println("interrupted, closing")
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
	}
}

func mintToken(secret, issuer, audience string, userID uint) (string, error) {
	claims := jwt.MapClaims{
		"sub": strconv.FormatUint(uint64(userID), 10),
		"iss": issuer,
		"aud": audience,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func printFrame(msg []byte) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil || env.Type == "" {
		fmt.Printf("%s raw %s\n", time.Now().Format(time.TimeOnly), msg)
		return
	}
	fmt.Printf("%s %s %s %s\n", time.Now().Format(time.TimeOnly), env.Type, env.ID, env.Payload)
}
