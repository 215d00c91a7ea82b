package bridge

import (
	"time"

	"github.com/example/booking-manager/internal/application"
	"github.com/example/booking-manager/internal/permission"
	"github.com/example/booking-manager/internal/persistence"
)

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:                   model.ID,
		Email:                model.Email,
		DisplayName:          model.DisplayName,
		Role:                 permission.Role(model.Role),
		Tier:                 permission.Tier(model.Tier),
		Active:               model.Active,
		NotificationsEnabled: model.NotificationsEnabled,
		LastSeenAt:           cloneTime(model.LastSeenAt),
		CreatedAt:            model.CreatedAt,
		UpdatedAt:            model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User, passwordHash string) persistence.User {
	return persistence.User{
		ID:                   user.ID,
		Email:                user.Email,
		DisplayName:          user.DisplayName,
		PasswordHash:         passwordHash,
		Role:                 string(user.Role),
		Tier:                 string(user.Tier),
		Active:               user.Active,
		NotificationsEnabled: user.NotificationsEnabled,
		LastSeenAt:           cloneTime(user.LastSeenAt),
		CreatedAt:            user.CreatedAt,
		UpdatedAt:            user.UpdatedAt,
	}
}

func toApplicationSession(model persistence.Session) application.Session {
	return application.Session{
		ID:          model.ID,
		UserID:      model.UserID,
		Token:       model.Token,
		Fingerprint: model.Fingerprint,
		ExpiresAt:   model.ExpiresAt,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
		RevokedAt:   cloneTime(model.RevokedAt),
	}
}

func toPersistenceSession(session application.Session) persistence.Session {
	return persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		Token:       session.Token,
		Fingerprint: session.Fingerprint,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
		RevokedAt:   cloneTime(session.RevokedAt),
	}
}

func toApplicationBooking(model persistence.Booking) application.Booking {
	var attachments []application.Attachment
	if len(model.Attachments) > 0 {
		attachments = make([]application.Attachment, 0, len(model.Attachments))
		for _, a := range model.Attachments {
			attachments = append(attachments, application.Attachment(a))
		}
	}
	return application.Booking{
		ID:              model.ID,
		Kind:            application.BookingKind(model.Kind),
		CustomerName:    model.CustomerName,
		CustomerSurname: model.CustomerSurname,
		EventName:       model.EventName,
		Phone:           model.Phone,
		ReservationDate: model.ReservationDate,
		ArrivalTime:     model.ArrivalTime,
		Room:            application.Room(model.Room),
		Adults:          model.Adults,
		Teens:           model.Teens,
		Children:        model.Children,
		Infants:         model.Infants,
		Participants:    model.Participants,
		MenuType:        model.MenuType,
		Allergies:       model.Allergies,
		PackageLabel:    model.PackageLabel,
		Notes:           model.Notes,
		RejectionReason: model.RejectionReason,
		Attachments:     attachments,
		Status:          application.BookingStatus(model.Status),
		CreatorID:       model.CreatorID,
		ProcessorID:     model.ProcessorID,
		ProcessedAt:     cloneTime(model.ProcessedAt),
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
		Revision:        model.Revision,
	}
}

func toPersistenceBooking(booking application.Booking) persistence.Booking {
	var attachments []persistence.Attachment
	if len(booking.Attachments) > 0 {
		attachments = make([]persistence.Attachment, 0, len(booking.Attachments))
		for _, a := range booking.Attachments {
			attachments = append(attachments, persistence.Attachment(a))
		}
	}
	return persistence.Booking{
		ID:              booking.ID,
		Kind:            string(booking.Kind),
		CustomerName:    booking.CustomerName,
		CustomerSurname: booking.CustomerSurname,
		EventName:       booking.EventName,
		Phone:           booking.Phone,
		ReservationDate: booking.ReservationDate,
		ArrivalTime:     booking.ArrivalTime,
		Room:            string(booking.Room),
		Adults:          booking.Adults,
		Teens:           booking.Teens,
		Children:        booking.Children,
		Infants:         booking.Infants,
		Participants:    booking.Participants,
		MenuType:        booking.MenuType,
		Allergies:       booking.Allergies,
		PackageLabel:    booking.PackageLabel,
		Notes:           booking.Notes,
		RejectionReason: booking.RejectionReason,
		Attachments:     attachments,
		Status:          string(booking.Status),
		CreatorID:       booking.CreatorID,
		ProcessorID:     booking.ProcessorID,
		ProcessedAt:     cloneTime(booking.ProcessedAt),
		CreatedAt:       booking.CreatedAt,
		UpdatedAt:       booking.UpdatedAt,
		Revision:        booking.Revision,
	}
}

func toPersistenceFilter(query application.BookingQuery) persistence.BookingFilter {
	var statuses []string
	for _, status := range query.Statuses {
		statuses = append(statuses, string(status))
	}
	return persistence.BookingFilter{
		Statuses:      statuses,
		Kind:          string(query.Kind),
		Room:          string(query.Room),
		DateFrom:      query.DateFrom,
		DateTo:        query.DateTo,
		Search:        query.Search,
		CreatorID:     query.CreatorID,
		CreatedBefore: cloneTime(query.CreatedBefore),
		Offset:        query.Offset,
		Limit:         query.Limit,
	}
}

func toApplicationNotification(model persistence.Notification) application.Notification {
	return application.Notification{
		ID:        model.ID,
		UserID:    model.UserID,
		Category:  application.NotificationCategory(model.Category),
		Priority:  application.NotificationPriority(model.Priority),
		Title:     model.Title,
		Message:   model.Message,
		BookingID: model.BookingID,
		Read:      model.Read,
		ReadAt:    cloneTime(model.ReadAt),
		CreatedAt: model.CreatedAt,
	}
}

func toPersistenceNotification(n application.Notification) persistence.Notification {
	return persistence.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Category:  string(n.Category),
		Priority:  string(n.Priority),
		Title:     n.Title,
		Message:   n.Message,
		BookingID: n.BookingID,
		Read:      n.Read,
		ReadAt:    cloneTime(n.ReadAt),
		CreatedAt: n.CreatedAt,
	}
}

func toApplicationAuditEntry(model persistence.AuditEntry) application.AuditEntry {
	return application.AuditEntry{
		ID:         model.ID,
		ActorID:    model.ActorID,
		ActorKind:  application.ActorKind(model.ActorKind),
		Action:     application.AuditAction(model.Action),
		EntityType: model.EntityType,
		EntityID:   model.EntityID,
		Details:    cloneDetails(model.Details),
		CreatedAt:  model.CreatedAt,
	}
}

func toPersistenceAuditEntry(entry application.AuditEntry) persistence.AuditEntry {
	return persistence.AuditEntry{
		ID:         entry.ID,
		ActorID:    entry.ActorID,
		ActorKind:  string(entry.ActorKind),
		Action:     string(entry.Action),
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Details:    cloneDetails(entry.Details),
		CreatedAt:  entry.CreatedAt,
	}
}

func cloneDetails(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
