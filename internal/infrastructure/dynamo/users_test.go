package dynamo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-otp-auth/internal/domain"
	"github.com/go-otp-auth/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAPI struct{ mock.Mock }

func (m *mockAPI) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.GetItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.QueryOutput)
	return out, args.Error(1)
}
func (m *mockAPI) UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.UpdateItemOutput)
	return out, args.Error(1)
}
func (m *mockAPI) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*dynamodb.CreateTableOutput)
	return out, args.Error(1)
}

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

func newRepo(api API) *UserRepo {
	r := NewUserRepo(api, "users")
	r.now = func() time.Time { return fixedNow }
	return r
}

func userItem() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"user_id":                 &types.AttributeValueMemberS{Value: "u1"},
		"email":                   &types.AttributeValueMemberS{Value: "a@b.com"},
		"full_name":               &types.AttributeValueMemberS{Value: "Ada"},
		"verification_code":       &types.AttributeValueMemberS{Value: "123456"},
		"verification_expires_at": &types.AttributeValueMemberS{Value: "2026-03-01T09:40:00Z"},
		"is_verified":             &types.AttributeValueMemberBOOL{Value: false},
	}
}

func TestGet_DecodesItem(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.MatchedBy(func(in *dynamodb.GetItemInput) bool {
		v, ok := in.Key["user_id"].(*types.AttributeValueMemberS)
		return ok && v.Value == "u1" && aws.ToString(in.TableName) == "users"
	})).Return(&dynamodb.GetItemOutput{Item: userItem()}, nil)

	u, err := newRepo(api).Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, "Ada", u.DisplayName())
	require.NotNil(t, u.VerificationCode)
	assert.Equal(t, "123456", *u.VerificationCode)
	require.NotNil(t, u.VerificationExpiresAt)
	assert.True(t, u.VerificationExpiresAt.Equal(fixedNow.Add(10*time.Minute)))
	assert.Equal(t, domain.StateCodePending, u.State())
}

func TestGet_NotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("GetItem", mock.Anything, mock.Anything).Return(&dynamodb.GetItemOutput{}, nil)

	_, err := newRepo(api).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetByEmail_QueriesIndex(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.MatchedBy(func(in *dynamodb.QueryInput) bool {
		v, ok := in.ExpressionAttributeValues[":v"].(*types.AttributeValueMemberS)
		return aws.ToString(in.IndexName) == "email-index" && in.ExpressionAttributeNames["#a"] == "email" && ok && v.Value == "a@b.com"
	})).Return(&dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{userItem()}}, nil)

	u, err := newRepo(api).GetByEmail(context.Background(), "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
}

func TestGetByEmail_NotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("Query", mock.Anything, mock.Anything).Return(&dynamodb.QueryOutput{}, nil)

	_, err := newRepo(api).GetByEmail(context.Background(), "nobody@b.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdate_BuildsConditionalExpression(t *testing.T) {
	api := &mockAPI{}
	var got *dynamodb.UpdateItemInput
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*dynamodb.UpdateItemInput) }).
		Return(&dynamodb.UpdateItemOutput{}, nil)

	updates := map[string]interface{}{
		domain.FieldVerificationCode: "654321",
		domain.FieldIsVerified:       false,
	}
	require.NoError(t, newRepo(api).Update(context.Background(), "u1", updates))

	assert.Len(t, updates, 2, "caller's map is not modified")
	assert.Equal(t, "attribute_exists(#pk)", aws.ToString(got.ConditionExpression))
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1, #f2 = :v2", aws.ToString(got.UpdateExpression))
	assert.Equal(t, "is_verified", got.ExpressionAttributeNames["#f0"])
	assert.Equal(t, "updated_at", got.ExpressionAttributeNames["#f1"])
	assert.Equal(t, "verification_code", got.ExpressionAttributeNames["#f2"])
	assert.Equal(t, "user_id", got.ExpressionAttributeNames["#pk"])
	ts := got.ExpressionAttributeValues[":v1"].(*types.AttributeValueMemberS)
	assert.Equal(t, "2026-03-01T09:30:00Z", ts.Value)
}

func TestUpdate_MissingItemIsNotFound(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("failed")})

	err := newRepo(api).Update(context.Background(), "ghost", map[string]interface{}{"is_verified": false})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateIfCode_ConditionOnStoredCode(t *testing.T) {
	api := &mockAPI{}
	var got *dynamodb.UpdateItemInput
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { got = args.Get(1).(*dynamodb.UpdateItemInput) }).
		Return(&dynamodb.UpdateItemOutput{}, nil)

	err := newRepo(api).UpdateIfCode(context.Background(), "u1", "123456", map[string]interface{}{
		domain.FieldIsVerified:            true,
		domain.FieldVerificationCode:      nil,
		domain.FieldVerificationExpiresAt: nil,
	})
	require.NoError(t, err)

	assert.Equal(t, "attribute_exists(#pk) AND #cc = :cc", aws.ToString(got.ConditionExpression))
	assert.Equal(t, "SET #f0 = :v0, #f1 = :v1 REMOVE #f2, #f3", aws.ToString(got.UpdateExpression))
	assert.Equal(t, "verification_code", got.ExpressionAttributeNames["#cc"])
	cc := got.ExpressionAttributeValues[":cc"].(*types.AttributeValueMemberS)
	assert.Equal(t, "123456", cc.Value)
}

func TestUpdateIfCode_ChangedCodeIsConflict(t *testing.T) {
	api := &mockAPI{}
	api.On("UpdateItem", mock.Anything, mock.Anything).
		Return(nil, &types.ConditionalCheckFailedException{Message: aws.String("failed")})

	err := newRepo(api).UpdateIfCode(context.Background(), "u1", "123456", map[string]interface{}{"is_verified": true})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdate_PassesThroughOtherErrors(t *testing.T) {
	api := &mockAPI{}
	boom := errors.New("throttled")
	api.On("UpdateItem", mock.Anything, mock.Anything).Return(nil, boom)

	err := newRepo(api).Update(context.Background(), "u1", map[string]interface{}{"is_verified": false})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestBootstrap_IgnoresExistingTable(t *testing.T) {
	api := &mockAPI{}
	api.On("CreateTable", mock.Anything, mock.MatchedBy(func(in *dynamodb.CreateTableInput) bool {
		return aws.ToString(in.TableName) == "users" &&
			len(in.GlobalSecondaryIndexes) == 1 &&
			aws.ToString(in.GlobalSecondaryIndexes[0].IndexName) == "email-index"
	})).Return(nil, &types.ResourceInUseException{Message: aws.String("exists")})

	assert.NoError(t, Bootstrap(context.Background(), api, "users", logger.Discard()))
	api.AssertExpectations(t)
}

func TestBootstrap_ReturnsOtherErrors(t *testing.T) {
	api := &mockAPI{}
	api.On("CreateTable", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))

	assert.Error(t, Bootstrap(context.Background(), api, "users", logger.Discard()))
}
