package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-auth/internal/domain"
)

// UserRepo provides typed DynamoDB operations for the users table.
type UserRepo struct {
	client    API
	tableName string
	now       func() time.Time
}

func NewUserRepo(client API, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, now: time.Now}
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.UserAccount, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(attrUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.UserAccount
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(emailIndex),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": domain.FieldEmail},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": &types.AttributeValueMemberS{Value: email}},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	var u domain.UserAccount
	if err := attributevalue.UnmarshalMap(out.Items[0], &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Update applies updates to an existing user. A nil value removes the attribute.
func (r *UserRepo) Update(ctx context.Context, userID string, updates map[string]interface{}) error {
	err := r.update(ctx, userID, updates, "", nil)
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return err
}

// UpdateIfCode applies updates only while the stored verification code equals
// expectedCode. Otherwise it returns domain.ErrConflict.
func (r *UserRepo) UpdateIfCode(ctx context.Context, userID, expectedCode string, updates map[string]interface{}) error {
	err := r.update(ctx, userID, updates, "#cc = :cc", map[string]types.AttributeValue{
		":cc": &types.AttributeValueMemberS{Value: expectedCode},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("verification code changed: %w", domain.ErrConflict)
	}
	return err
}

func (r *UserRepo) update(ctx context.Context, userID string, updates map[string]interface{}, extraCond string, extraValues map[string]types.AttributeValue) error {
	fields := make(map[string]interface{}, len(updates)+1)
	for k, v := range updates {
		fields[k] = v
	}
	fields[domain.FieldUpdatedAt] = r.now().UTC()

	ue, err := buildUpdateExpr(fields)
	if err != nil {
		return err
	}

	cond := "attribute_exists(#pk)"
	ue.Names["#pk"] = attrUserID
	if extraCond != "" {
		cond += " AND " + extraCond
		ue.Names["#cc"] = domain.FieldVerificationCode
		for k, v := range extraValues {
			ue.Values[k] = v
		}
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(attrUserID, userID),
		UpdateExpression:         aws.String(ue.Expr),
		ConditionExpression:      aws.String(cond),
		ExpressionAttributeNames: ue.Names,
	}
	if len(ue.Values) > 0 {
		input.ExpressionAttributeValues = ue.Values
	}
	_, err = r.client.UpdateItem(ctx, input)
	return err
}
