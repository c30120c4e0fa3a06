package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080/ws/group-message", "WebSocket namespace address")
	token := flag.String("token", os.Getenv("WIRECHAT_TOKEN"), "access token (from /api/login)")
	groupID := flag.Int64("group", 0, "group id (group-message namespace)")
	contactID := flag.Int64("contact", 0, "contact id (message namespace)")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	var target proto.TargetData
	switch {
	case *groupID > 0 && *contactID > 0:
		return errors.New("set only one of -group and -contact")
	case *groupID > 0:
		target.GroupID = groupID
	case *contactID > 0:
		target.ContactID = contactID
	default:
		return errors.New("one of -group or -contact is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+*token)
	conn, _, err := websocket.Dial(ctx, *addr, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	send := func(typ, id string, data any) error {
		payload, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", typ, err)
		}
		if err := wsjson.Write(ctx, conn, proto.Inbound{Type: typ, ID: id, Data: payload}); err != nil {
			return fmt.Errorf("send %s: %w", typ, err)
		}
		return nil
	}

	if err := send(proto.InboundTypeJoin, "join", proto.JoinData{TargetData: target}); err != nil {
		return err
	}
	if err := send(proto.InboundTypeCreate, "create", proto.CreateData{TargetData: target, Message: *text}); err != nil {
		return err
	}

	for {
		var outbound struct {
			Type  string          `json:"type"`
			ID    string          `json:"id"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Printf(" event=%s", outbound.Event)
		}
		if outbound.ID != "" {
			fmt.Printf(" id=%s", outbound.ID)
		}
		fmt.Println()

		if outbound.Error != nil {
			return fmt.Errorf("server error %s: %s", outbound.Error.Code, outbound.Error.Message)
		}

		if outbound.Event == proto.EventMessageCreated {
			var evt proto.EventMessage
			if err := json.Unmarshal(outbound.Data, &evt); err != nil {
				fmt.Printf("Raw data: %s\n", string(outbound.Data))
				return fmt.Errorf("unmarshal message: %w", err)
			}
			fmt.Printf("EventMessage: id=%d sender=%d text=%q sent_at=%d\n", evt.ID, evt.SenderID, evt.Text, evt.SentAt)
		}
		if outbound.Type == proto.OutboundTypeAck && outbound.ID == "create" {
			return nil
		}
	}
}
