//go:build windows

package platform

import "gopkg.in/toast.v1"

type toastNotifier struct {
	appID string
}

// NewNotifier returns a toast notifier registered under appID.
func NewNotifier(appID string) Notifier {
	return toastNotifier{appID: appID}
}

func (n toastNotifier) Notify(title, message string) error {
	note := toast.Notification{
		AppID:   n.appID,
		Title:   title,
		Message: message,
	}
	return note.Push()
}
