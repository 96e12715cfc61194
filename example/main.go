// Package main demonstrates a web push notification server.
//
// This example:
// - Generates or loads VAPID keys from a PEM file on disk
// - Keeps subscriptions in memory for the life of the process
// - Serves a web client for subscribing to notifications
// - Sends push notifications every minute, and on /ping requests
package main

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/x509"
	"embed"
	"encoding/json"
	"encoding/pem"
	"io"
	"io/fs"
	"math/big"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/google/uuid"
	"github.com/sethvargo/go-envconfig"

	"github.com/webpush-go/webpush"
	"github.com/webpush-go/webpush/vapid"
)

//go:embed static/*
var staticFiles embed.FS

const (
	pemPath   = "/tmp/vapid-private.pem"
	subject   = "mailto:admin@example.com"
	serverURL = "http://localhost:8080"
)

var envConfig = envconfig.MustProcess(context.Background(), &struct {
	RequestConcurrency int `env:"REQUEST_CONCURRENCY" default:"20"`
}{})

var (
	client   *webpush.Client
	vapidKey *vapid.KeyPair

	subsMu sync.Mutex
	subs   = map[string]*webpush.Subscription{} // id -> subscription
)

func main() {
	ctx := context.Background()
	log := clog.FromContext(ctx)

	var err error
	vapidKey, err = loadOrCreateVAPIDKey()
	if err != nil {
		log.Fatalf("failed to initialize VAPID key: %v", err)
	}
	log.Infof("VAPID public key: %s", vapidKey.PublicKeyBase64())

	client = webpush.NewClient(http.DefaultClient, vapidKey)

	go periodicPush(ctx)

	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		log.Fatalf("failed to create static file system: %v", err)
	}
	http.Handle("/", http.FileServer(http.FS(staticFS)))
	http.HandleFunc("/api/vapid-public-key", handleVAPIDPublicKey)
	http.HandleFunc("/api/subscribe", handleSubscribe)
	http.HandleFunc("/api/unsubscribe", handleUnsubscribe)
	http.HandleFunc("/ping", handlePing)

	log.Infof("server starting at %s", serverURL)
	if err := http.ListenAndServe(":8080", nil); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// loadOrCreateVAPIDKey loads a VAPID key pair from pemPath, generating and
// persisting a fresh one the first time the server runs.
func loadOrCreateVAPIDKey() (*vapid.KeyPair, error) {
	if _, err := os.Stat(pemPath); os.IsNotExist(err) {
		pub, priv, err := vapid.CreateKeys()
		if err != nil {
			return nil, err
		}
		kp, err := vapid.Load(vapid.Config{Subject: subject, PublicKey: pub, PrivateKey: priv})
		if err != nil {
			return nil, err
		}
		pemText, err := marshalKeyPairPEM(kp)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(pemPath, []byte(pemText), 0o600); err != nil {
			return nil, err
		}
		return kp, nil
	}
	return vapid.Load(vapid.Config{Subject: subject, PEMFile: pemPath})
}

// marshalKeyPairPEM re-encodes a freshly generated KeyPair as an "EC
// PRIVATE KEY" PEM block, the format vapid.Load(Config{PEMFile: ...})
// expects on the next restart.
func marshalKeyPairPEM(kp *vapid.KeyPair) (string, error) {
	priv := new(ecdsa.PrivateKey)
	priv.Curve = elliptic.P256()
	priv.D = new(big.Int).SetBytes(kp.PrivateKey)
	priv.X, priv.Y = new(big.Int), new(big.Int)
	priv.X.SetBytes(kp.PublicKey[1:33])
	priv.Y.SetBytes(kp.PublicKey[33:65])

	der, err := x509.MarshalECPrivateKey(priv)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})), nil
}

// periodicPush sends a push notification to all subscribers every minute.
func periodicPush(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		sendToAll(ctx, "Periodic Update", "This notification is sent every minute!")
	}
}

// sendToAll queues a notification for every known subscriber and flushes
// them with bounded concurrency, pruning any subscription the push service
// reports as gone.
func sendToAll(ctx context.Context, title, body string) {
	log := clog.FromContext(ctx)

	subsMu.Lock()
	ids := make([]string, 0, len(subs))
	for id := range subs {
		ids = append(ids, id)
	}
	subsMu.Unlock()

	if len(ids) == 0 {
		log.Info("no subscribers to notify")
		return
	}

	payload, err := json.Marshal(map[string]string{"title": title, "body": body})
	if err != nil {
		log.Infof("failed to marshal payload: %v", err)
		return
	}

	idByEndpoint := make(map[string]string, len(ids))
	subsMu.Lock()
	for _, id := range ids {
		sub := subs[id]
		idByEndpoint[sub.Endpoint] = id
		err := client.QueueNotification(&webpush.Notification{
			Subscription: sub,
			Payload:      payload,
			Options:      &webpush.Options{TTL: 3600, Urgency: webpush.UrgencyNormal},
		})
		if err != nil {
			log.Infof("failed to queue %s: %v", id, err)
		}
	}
	subsMu.Unlock()

	var sent, failed int
	err = client.FlushPooled(ctx, 0, envConfig.RequestConcurrency, func(r *webpush.MessageSentReport) {
		if !r.Success() {
			failed++
			log.Infof("failed to send to %s: %s", r.Endpoint(), r.Reason())
			return
		}
		sent++
		if r.Response().StatusCode == http.StatusGone {
			if id, ok := idByEndpoint[r.Endpoint()]; ok {
				subsMu.Lock()
				delete(subs, id)
				subsMu.Unlock()
				log.Infof("deleted expired subscription: %s", id)
			}
		}
	})
	if err != nil {
		log.Infof("flush failed: %v", err)
	}
	log.Infof("push sent: %d successful, %d failed", sent, failed)
}

// HTTP Handlers

func handleVAPIDPublicKey(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	pubKey := vapidKey.PublicKeyBase64()
	json.NewEncoder(w).Encode(map[string]string{
		"publicKey": pubKey,
		"keyId":     pubKey[:16],
	})
}

func handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Invalid body: "+err.Error(), http.StatusBadRequest)
		return
	}
	sub, err := webpush.ParseSubscription(body)
	if err != nil {
		http.Error(w, "Invalid subscription: "+err.Error(), http.StatusBadRequest)
		return
	}

	subsMu.Lock()
	for id, existing := range subs {
		if existing.Endpoint == sub.Endpoint {
			subsMu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"id": id, "message": "Already subscribed"})
			return
		}
	}
	id := uuid.New().String()
	subs[id] = sub
	subsMu.Unlock()

	clog.FromContext(r.Context()).Infof("new subscription: %s", id)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"id": id, "message": "Subscribed successfully"})
}

func handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}

	subsMu.Lock()
	found := ""
	for id, sub := range subs {
		if sub.Endpoint == req.Endpoint {
			found = id
			break
		}
	}
	if found != "" {
		delete(subs, found)
	}
	subsMu.Unlock()

	if found == "" {
		http.Error(w, "Subscription not found", http.StatusNotFound)
		return
	}

	clog.FromContext(r.Context()).Infof("unsubscribed: %s", req.Endpoint)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Unsubscribed successfully"})
}

func handlePing(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		title = "Ping!"
	}
	body := r.URL.Query().Get("body")
	if body == "" {
		body = "Someone pinged the server at " + time.Now().Format(time.RFC3339)
	}

	go sendToAll(context.WithoutCancel(r.Context()), title, body)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Push notification queued"})
}
