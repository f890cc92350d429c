package service

import "fmt"

func friendRequestEmailTemplate(receiverName, senderName, friendsURL, appName string) (string, string) {
	if receiverName == "" {
		receiverName = "there"
	}
	subject := fmt.Sprintf("%s wants to be your friend on %s", senderName, appName)
	body := fmt.Sprintf(`Hi %s,

%s sent you a friend request. Once you accept, you can follow each other's habits and progress.

Review the request: %s

Best,
The %s Team`, receiverName, senderName, friendsURL, appName)

	return subject, body
}

func welcomeEmailTemplate(name, appURL, appName string) (string, string) {
	if name == "" {
		name = "there"
	}
	subject := fmt.Sprintf("Welcome to %s!", appName)
	body := fmt.Sprintf(`Hi %s,

Your account is ready. Pick a few habits, set your daily targets and start journaling:
%s

Best,
The %s Team`, name, appURL, appName)

	return subject, body
}
