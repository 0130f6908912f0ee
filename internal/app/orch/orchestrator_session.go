package orch

import (
	"context"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
)

func (o *Orchestrator) Join(ctx context.Context, id domain.RoomID, user domain.UserID) (domain.SessionHandle, error) {
	return o.Sessions.Join(ctx, id, user)
}

func (o *Orchestrator) Leave(ctx context.Context, id domain.RoomID, user domain.UserID) error {
	return o.Sessions.Leave(ctx, id, user)
}

func (o *Orchestrator) PostMessage(ctx context.Context, id domain.RoomID, user domain.UserID, content string) (domain.Message, error) {
	return o.Sessions.PostMessage(ctx, id, user, content)
}

func (o *Orchestrator) SetMediaState(ctx context.Context, id domain.RoomID, user domain.UserID, upd domain.MediaUpdate) (domain.Presence, error) {
	return o.Sessions.SetMediaState(ctx, id, user, upd)
}

func (o *Orchestrator) RequestScreenShare(ctx context.Context, id domain.RoomID, user domain.UserID) (bool, error) {
	return o.Sessions.RequestScreenShare(ctx, id, user)
}

func (o *Orchestrator) StopScreenShare(ctx context.Context, id domain.RoomID, user domain.UserID) error {
	return o.Sessions.StopScreenShare(ctx, id, user)
}

func (o *Orchestrator) Relay(ctx context.Context, id domain.RoomID, from domain.UserID, p domain.SignalPayload) error {
	return o.Sessions.Relay(ctx, id, from, p)
}

// SessionSnapshot is only available to members of the room.
func (o *Orchestrator) SessionSnapshot(ctx context.Context, id domain.RoomID, user domain.UserID) (domain.SessionSnapshot, error) {
	room, err := o.Registry.Get(id)
	if err != nil {
		return domain.SessionSnapshot{}, err
	}
	if !room.IsMember(user) {
		return domain.SessionSnapshot{}, domain.Fail("snapshot", id, user, domain.ErrNotMember)
	}
	return o.Sessions.Snapshot(ctx, id)
}

// Subscribe opens an event stream for a room. Only members receive session
// events; everybody else may watch room state changes.
func (o *Orchestrator) Subscribe(id domain.RoomID, user domain.UserID) (*app.Subscription, error) {
	room, err := o.Registry.Get(id)
	if err != nil {
		return nil, err
	}
	if room.Status == domain.StatusClosed {
		return nil, domain.Fail("subscribe", id, user, domain.ErrRoomClosed)
	}
	var sub *app.Subscription
	if room.IsMember(user) {
		sub = o.Hub.Subscribe(id, user)
	} else {
		sub = o.Hub.Subscribe(id, user, domain.EventRoomStateChanged)
	}
	// Close may have forgotten the room between Get and Subscribe.
	if room, err = o.Registry.Get(id); err != nil || room.Status == domain.StatusClosed {
		o.Hub.Unsubscribe(sub)
		return nil, domain.Fail("subscribe", id, user, domain.ErrRoomClosed)
	}
	return sub, nil
}

func (o *Orchestrator) Unsubscribe(sub *app.Subscription) {
	o.Hub.Unsubscribe(sub)
}
