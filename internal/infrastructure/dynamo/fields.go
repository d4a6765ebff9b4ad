package dynamo

// Key and index names of the users table.
const (
	attrUserID = "user_id"
	emailIndex = "email-index"
)
