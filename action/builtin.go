package action

// NewDefaultRegistry registers the actions shipped with the service.
func NewDefaultRegistry(mailer Mailer) *Registry {
	r := NewRegistry()
	Register(r, SendEmailAction, SendEmail(mailer))
	Register(r, LongTaskAction, LongTask)
	return r
}
