// Package orch wires the registry, matching engine, session coordinator and
// hub into the single entry point transports talk to.
package orch

import (
	"context"

	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/app"
	"github.com/jaehyeon2650/bootcamp-buddy-up/internal/domain"
)

type Orchestrator struct {
	Directory *app.Directory
	Registry  *app.Registry
	Matching  *app.Matching
	Sessions  *app.Sessions
	Hub       *app.Hub
}

func (o *Orchestrator) CreateRoom(ctx context.Context, p domain.CreateRoomParams) (domain.Room, error) {
	return o.Registry.Create(ctx, p)
}

func (o *Orchestrator) GetRoom(id domain.RoomID) (domain.Room, error) {
	return o.Registry.Get(id)
}

func (o *Orchestrator) ListRooms(f app.ListFilter) []domain.Room {
	return o.Registry.List(f)
}

func (o *Orchestrator) Apply(ctx context.Context, id domain.RoomID, user domain.UserID) (domain.Room, error) {
	return o.Matching.Apply(ctx, id, user)
}

func (o *Orchestrator) Withdraw(ctx context.Context, id domain.RoomID, user domain.UserID) (domain.Room, error) {
	return o.Matching.Withdraw(ctx, id, user)
}

func (o *Orchestrator) Approve(ctx context.Context, id domain.RoomID, approver, applicant domain.UserID) (domain.Room, error) {
	return o.Matching.Approve(ctx, id, approver, applicant)
}

func (o *Orchestrator) Reject(ctx context.Context, id domain.RoomID, approver, applicant domain.UserID) (domain.Room, error) {
	return o.Matching.Reject(ctx, id, approver, applicant)
}

// Close closes the room and ends every subscription once the final room
// event has been queued; subscribers drain it before their channel closes.
func (o *Orchestrator) Close(ctx context.Context, id domain.RoomID, requester domain.UserID) (domain.Room, error) {
	room, err := o.Matching.Close(ctx, id, requester)
	if err != nil {
		return room, err
	}
	o.Hub.Forget(id)
	return room, nil
}
