package domain

// Address is a mailbox with an optional display name.
type Address struct {
	Email string
	Name  string
}

// Message is a plain-text transactional email.
type Message struct {
	To      Address
	From    Address
	Subject string
	Text    string
}
