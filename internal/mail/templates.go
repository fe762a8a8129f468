package mail

import "fmt"

// VerifyEmail builds the account verification message.
func VerifyEmail(to, name, link string) Message {
	return Message{
		To:      to,
		Subject: "Verify your email address",
		Body: fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening the link below. "+
			"It expires in 24 hours.\n\n%s\n", greetingName(name), link),
	}
}

// ResetPassword builds the password reset message.
func ResetPassword(to, name, link string) Message {
	return Message{
		To:      to,
		Subject: "Reset your password",
		Body: fmt.Sprintf("Hi %s,\n\nSomeone asked to reset your password. If it was you, open the link below "+
			"within one hour.\n\n%s\n\nIf not, you can ignore this email.\n", greetingName(name), link),
	}
}

func greetingName(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
