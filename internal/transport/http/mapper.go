package http

import (
	"encoding/json"

	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
	"github.com/vovakirdan/wirechat-relay/internal/store"
)

// inboundToCommand decodes an envelope into a core command. The room target is resolved
// here and nowhere else; malformed payloads become validation errors for the caller.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *core.CoreError) {
	switch inbound.Type {
	case proto.InboundTypeJoin, proto.InboundTypeLeave:
		var data proto.JoinData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		target, err := resolve(data.TargetData)
		if err != nil {
			return nil, err
		}
		kind := core.CommandJoin
		if inbound.Type == proto.InboundTypeLeave {
			kind = core.CommandLeave
		}
		return &core.Command{Kind: kind, RequestID: inbound.ID, Target: target}, nil
	case proto.InboundTypeCreate:
		var data proto.CreateData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		target, err := resolve(data.TargetData)
		if err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandCreate, RequestID: inbound.ID, Target: target, Text: data.Message}, nil
	case proto.InboundTypeFindAll:
		var data proto.FindAllData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		target, err := resolve(data.TargetData)
		if err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandFindAll, RequestID: inbound.ID, Target: target, Skip: data.Skip}, nil
	case proto.InboundTypeUpdate:
		var data proto.UpdateData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		target, err := resolve(data.TargetData)
		if err != nil {
			return nil, err
		}
		return &core.Command{
			Kind:      core.CommandUpdate,
			RequestID: inbound.ID,
			Target:    target,
			MessageID: data.ID,
			Text:      data.Message,
		}, nil
	case proto.InboundTypeDelete:
		var data proto.DeleteData
		if err := decodeData(inbound.Data, &data); err != nil {
			return nil, err
		}
		target, err := resolve(data.TargetData)
		if err != nil {
			return nil, err
		}
		return &core.Command{Kind: core.CommandDelete, RequestID: inbound.ID, Target: target, MessageIDs: data.IDs}, nil
	default:
		return nil, core.ValidationError("unknown message type")
	}
}

func decodeData(raw json.RawMessage, dst any) *core.CoreError {
	if len(raw) == 0 {
		return core.ValidationError("data is required")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return core.ValidationError("malformed data")
	}
	return nil
}

func resolve(t proto.TargetData) (store.RoomTarget, *core.CoreError) {
	return core.ResolveTarget(t.ContactID, t.GroupID)
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	out := proto.Outbound{Type: proto.OutboundTypeEvent}
	if event.Reply {
		out.Type = proto.OutboundTypeAck
		out.ID = event.RequestID
	}

	switch event.Kind {
	case core.EventMessageCreated:
		out.Event = proto.EventMessageCreated
		out.Data = messageToProto(event.Message)
	case core.EventMessageUpdated:
		out.Event = proto.EventMessageUpdated
		out.Data = messageToProto(event.Message)
	case core.EventMessagesDeleted:
		ids := event.DeletedIDs
		if ids == nil {
			ids = []int64{}
		}
		out.Event = proto.EventMessagesDeleted
		out.Data = proto.MessagesDeletedData{TargetData: targetToProto(event.Target), IDs: ids}
	case core.EventMessageList:
		messages := make([]proto.EventMessage, 0, len(event.Messages))
		for _, msg := range event.Messages {
			messages = append(messages, messageToProto(msg))
		}
		out.Event = proto.EventMessageList
		out.Data = proto.MessageListData{TargetData: targetToProto(event.Target), Messages: messages}
	case core.EventJoined:
		out.Event = proto.EventJoined
		out.Data = proto.RoomData{TargetData: targetToProto(event.Target)}
	case core.EventLeft:
		out.Event = proto.EventLeft
		out.Data = proto.RoomData{TargetData: targetToProto(event.Target)}
	case core.EventError:
		out.Type = proto.OutboundTypeError
		if event.Error == nil {
			out.Error = &proto.Error{Code: core.ErrCodeInternal, Message: "internal error"}
		} else {
			out.Error = &proto.Error{Code: event.Error.Code, Message: event.Error.Message}
		}
	}
	return out
}

func errorOutbound(requestID string, err *core.CoreError) proto.Outbound {
	return proto.Outbound{
		Type:  proto.OutboundTypeError,
		ID:    requestID,
		Error: &proto.Error{Code: err.Code, Message: err.Message},
	}
}

func targetToProto(t store.RoomTarget) proto.TargetData {
	id := t.ID
	switch t.Kind {
	case store.RoomKindDirect:
		return proto.TargetData{ContactID: &id}
	case store.RoomKindGroup:
		return proto.TargetData{GroupID: &id}
	default:
		return proto.TargetData{}
	}
}

func messageToProto(msg *store.Message) proto.EventMessage {
	if msg == nil {
		return proto.EventMessage{}
	}
	target := targetToProto(msg.Target)
	return proto.EventMessage{
		ID:        msg.ID,
		Text:      msg.Text,
		SenderID:  msg.SenderID,
		ContactID: target.ContactID,
		GroupID:   target.GroupID,
		SentAt:    msg.SentAt.UnixMilli(),
		UpdatedAt: msg.UpdatedAt.UnixMilli(),
	}
}
