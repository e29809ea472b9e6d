// Package notifications implements the notification component framework.
// This file contains the message builders: pure functions from a joined
// notification to its rendered message. Every builder returns nil when a
// row it depends on was deleted out from under the notification.
package notifications

import (
	"fmt"
	"html"

	"github.com/ca-la/studio-backend/internal/domain"
)

// Links builds the app URLs embedded in rendered messages.
type Links struct {
	// Host is the externally reachable base URL, without trailing slash.
	Host string
}

func (l Links) design(id string) string     { return l.Host + "/designs/" + id }
func (l Links) collection(id string) string { return l.Host + "/collections/" + id }
func (l Links) step(designID, stepID string) string {
	return l.design(designID) + "/approval-steps/" + stepID
}
func (l Links) task(id string) string { return l.Host + "/tasks/" + id }

// location builds the breadcrumb for a design-scoped notification.
func location(full *domain.FullNotification) []string {
	var out []string
	if full.CollectionTitle != nil {
		out = append(out, *full.CollectionTitle)
	}
	if full.DesignTitle != nil {
		out = append(out, *full.DesignTitle)
	}
	return out
}

func message(full *domain.FullNotification, text, link string) *domain.NotificationMessage {
	return &domain.NotificationMessage{
		Title:    text,
		Text:     text,
		HTML:     fmt.Sprintf("<p>%s</p>", html.EscapeString(text)),
		Location: location(full),
		Link:     link,
		Type:     full.Type,
	}
}

func stepAssignmentMessage(l Links, full *domain.FullNotification) *domain.NotificationMessage {
	if full.DesignTitle == nil || full.StepTitle == nil {
		return nil
	}
	text := fmt.Sprintf("%s assigned you to %s on %s", full.ActorName, *full.StepTitle, *full.DesignTitle)
	return message(full, text, l.step(*full.DesignID, *full.ApprovalStepID))
}

func stepCompletionMessage(l Links, full *domain.FullNotification) *domain.NotificationMessage {
	if full.DesignTitle == nil || full.StepTitle == nil {
		return nil
	}
	text := fmt.Sprintf("%s completed %s on %s", full.ActorName, *full.StepTitle, *full.DesignTitle)
	return message(full, text, l.step(*full.DesignID, *full.ApprovalStepID))
}

func stepCommentMessage(l Links, full *domain.FullNotification) *domain.NotificationMessage {
	if full.DesignTitle == nil || full.StepTitle == nil || full.CommentText == nil {
		return nil
	}
	text := fmt.Sprintf("%s commented on %s for %s", full.ActorName, *full.StepTitle, *full.DesignTitle)
	m := message(full, text, l.step(*full.DesignID, *full.ApprovalStepID))
	m.Attachments = []domain.MessageAttachment{{Text: *full.CommentText, URL: m.Link}}
	return m
}

func annotationCommentMessage(l Links, full *domain.FullNotification) *domain.NotificationMessage {
	if full.DesignTitle == nil || full.CommentText == nil {
		return nil
	}
	text := fmt.Sprintf("%s commented on %s", full.ActorName, *full.DesignTitle)
	m := message(full, text, l.design(*full.DesignID))
	m.Attachments = []domain.MessageAttachment{{Text: *full.CommentText, URL: m.Link}}
	return m
}

func collectionSubmitMessage(l Links, full *domain.FullNotification) *domain.NotificationMessage {
	if full.CollectionTitle == nil {
		return nil
	}
	text := fmt.Sprintf("%s submitted %s for review", full.ActorName, *full.CollectionTitle)
	return message(full, text, l.collection(*full.CollectionID))
}

func commitCostInputsMessage(l Links, full *domain.FullNotification) *domain.NotificationMessage {
	if full.CollectionTitle == nil {
		return nil
	}
	text := fmt.Sprintf("%s added pricing to %s", full.ActorName, *full.CollectionTitle)
	return message(full, text, l.collection(*full.CollectionID))
}

func inviteCollaboratorMessage(l Links, full *domain.FullNotification) *domain.NotificationMessage {
	var scope, link string
	switch {
	case full.DesignID != nil:
		if full.DesignTitle == nil {
			return nil
		}
		scope, link = *full.DesignTitle, l.design(*full.DesignID)
	case full.CollectionID != nil:
		if full.CollectionTitle == nil {
			return nil
		}
		scope, link = *full.CollectionTitle, l.collection(*full.CollectionID)
	case full.TeamID != nil:
		if full.TeamTitle == nil {
			return nil
		}
		scope, link = *full.TeamTitle, l.Host+"/teams/"+*full.TeamID
	default:
		return nil
	}
	text := fmt.Sprintf("%s invited you to collaborate on %s", full.ActorName, scope)
	return message(full, text, link)
}

func taskAssignmentMessage(l Links, full *domain.FullNotification) *domain.NotificationMessage {
	if full.TaskTitle == nil {
		return nil
	}
	text := fmt.Sprintf("%s assigned you the task %s", full.ActorName, *full.TaskTitle)
	return message(full, text, l.task(*full.TaskID))
}
