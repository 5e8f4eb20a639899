package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type dynamoAPI interface {
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// dynamoItem flattens the reminder flags to top-level attributes so a single
// UpdateItem can set them without the nested map existing first.
type dynamoItem struct {
	ID            string     `dynamodbav:"id"`
	PatientName   string     `dynamodbav:"patientName"`
	PatientPhone  string     `dynamodbav:"patientPhone,omitempty"`
	PatientEmail  string     `dynamodbav:"patientEmail,omitempty"`
	DoctorName    string     `dynamodbav:"doctorName"`
	Specialty     string     `dynamodbav:"specialty"`
	Date          string     `dynamodbav:"date"`
	Time          string     `dynamodbav:"time"`
	Status        string     `dynamodbav:"status"`
	Reminder24h   bool       `dynamodbav:"reminderSent24h"`
	Reminder24hAt *time.Time `dynamodbav:"reminderSent24hAt,omitempty"`
	Reminder2h    bool       `dynamodbav:"reminderSent2h"`
	Reminder2hAt  *time.Time `dynamodbav:"reminderSent2hAt,omitempty"`
}

func (d dynamoItem) appointment() Appointment {
	return Appointment{
		ID:           d.ID,
		PatientName:  d.PatientName,
		PatientPhone: d.PatientPhone,
		PatientEmail: d.PatientEmail,
		DoctorName:   d.DoctorName,
		Specialty:    d.Specialty,
		Date:         d.Date,
		Time:         d.Time,
		Status:       Status(d.Status),
		Reminders: ReminderState{
			Sent24h:   d.Reminder24h,
			Sent24hAt: d.Reminder24hAt,
			Sent2h:    d.Reminder2h,
			Sent2hAt:  d.Reminder2hAt,
		},
	}
}

// DynamoStore persists appointments in a DynamoDB table keyed by id.
type DynamoStore struct {
	client    dynamoAPI
	tableName string
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore builds a store backed by the provided DynamoDB client.
func NewDynamoStore(client dynamoAPI, tableName string) *DynamoStore {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	return &DynamoStore{client: client, tableName: tableName}
}

// ListAppointments scans the whole table, following pagination.
func (s *DynamoStore) ListAppointments(ctx context.Context) ([]Appointment, error) {
	var result []Appointment
	var startKey map[string]types.AttributeValue
	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.tableName),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("appointments: scan %s: %w", s.tableName, err)
		}
		var items []dynamoItem
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("appointments: decode items: %w", err)
		}
		for _, item := range items {
			result = append(result, item.appointment())
		}
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		startKey = out.LastEvaluatedKey
	}
}

// MarkReminderSent conditionally sets one flag; the condition fails when the
// item is missing or the flag is already true.
func (s *DynamoStore) MarkReminderSent(ctx context.Context, id string, kind ReminderKind, at time.Time) error {
	var flag, atAttr string
	switch kind {
	case Reminder24h:
		flag, atAttr = "reminderSent24h", "reminderSent24hAt"
	case Reminder2h:
		flag, atAttr = "reminderSent2h", "reminderSent2hAt"
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	atValue, err := attributevalue.Marshal(at.UTC())
	if err != nil {
		return fmt.Errorf("appointments: marshal timestamp: %w", err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"id": &types.AttributeValueMemberS{Value: id},
		},
		UpdateExpression: aws.String("SET #flag = :true, #at = :at"),
		ConditionExpression: aws.String(
			"attribute_exists(id) AND (attribute_not_exists(#flag) OR #flag = :false)"),
		ExpressionAttributeNames: map[string]string{
			"#flag": flag,
			"#at":   atAttr,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":  &types.AttributeValueMemberBOOL{Value: true},
			":false": &types.AttributeValueMemberBOOL{Value: false},
			":at":    atValue,
		},
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err == nil {
		return nil
	}
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		if len(condErr.Item) == 0 {
			return ErrNotFound
		}
		return ErrAlreadyMarked
	}
	return fmt.Errorf("appointments: mark %s reminder for %s: %w", kind, id, err)
}
