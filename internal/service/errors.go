// Package service implements the mediation core: the request queue, the
// phone lifecycle tracker, the beacon maintainer, and topic/binding
// configuration. The bot boundary translates the sentinel errors below into
// operator-facing messages; nothing here talks to Telegram types directly.
package service

import "errors"

var (
	// ErrNotOfficeChat is returned when a number request comes from a chat
	// no operator has declared as an office.
	ErrNotOfficeChat = errors.New("chat is not a configured office chat")

	// ErrNoDropsChat is returned when the office has no bound drops chat.
	ErrNoDropsChat = errors.New("no drops chat bound to this office")

	// ErrNoLinkedTopics is returned when a number request finds no active
	// intake topic linked to the requesting office.
	ErrNoLinkedTopics = errors.New("no active intake topic linked to this office")

	// ErrNoOfficeLinks is returned when a submission lands in a topic with
	// zero office links; such a topic accepts no matches at all.
	ErrNoOfficeLinks = errors.New("no office linked to this topic")

	// ErrNoOpenRequests is returned when the drops chat has no pending
	// requests whatsoever. Distinct from ErrOfficeNotLinked by contract.
	ErrNoOpenRequests = errors.New("no open requests for this topic")

	// ErrOfficeNotLinked is returned when pending requests exist for the
	// drops chat but none belongs to an office linked to the topic.
	ErrOfficeNotLinked = errors.New("open requests exist but their offices are not linked to this topic")

	// ErrIntakeDisabled is returned when number intake is paused for the
	// drops chat.
	ErrIntakeDisabled = errors.New("number intake is paused")

	// ErrUnknownPhone is returned when no lifecycle record exists for the
	// phone number.
	ErrUnknownPhone = errors.New("no record for this phone number")

	// ErrInvalidState is returned when a lifecycle transition is attempted
	// from a state that does not permit it.
	ErrInvalidState = errors.New("invalid lifecycle state for this action")

	// ErrTopicInactive is returned when a code relay targets a topic that
	// has been reset or deactivated since the number was submitted.
	ErrTopicInactive = errors.New("topic is not active")

	// ErrNoReportsTopic is returned when a report line must be created but
	// the drops chat has no active reports topic.
	ErrNoReportsTopic = errors.New("no active reports topic configured")

	// ErrBadBindingList is returned when a binding setup list has fewer
	// than one office chat plus the drops chat.
	ErrBadBindingList = errors.New("binding needs at least one office chat and a drops chat")
)
