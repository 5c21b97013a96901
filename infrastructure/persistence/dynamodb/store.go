package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"internship-backend/application/ports"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// partitionKey holds the collection name; "id" is the sort key.
	partitionKey = "_collection"
	sortKey      = "id"
)

// Store implements ports.DocumentStore on a single DynamoDB table keyed by
// (collection, id).
type Store struct {
	client *awsdynamodb.Client
	table  string
}

// NewStore creates a store over table.
func NewStore(client *awsdynamodb.Client, table string) *Store {
	return &Store{client: client, table: table}
}

// List queries the whole collection partition, then sorts by createdAt
// descending and applies offset and limit in memory.
func (s *Store) List(ctx context.Context, collection string, opts ports.ListOptions) ([]ports.Document, error) {
	keyCond, rest := keyCondition(collection, opts.Filter)
	builder := expression.NewBuilder().WithKeyCondition(keyCond)
	if cond, ok := filterCondition(rest); ok {
		builder = builder.WithFilter(cond)
	}
	expr, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	paginator := awsdynamodb.NewQueryPaginator(s.client, &awsdynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    expr.KeyCondition(),
		FilterExpression:          expr.Filter(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})

	docs := make([]ports.Document, 0)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", collection, err)
		}
		for _, item := range page.Items {
			doc, err := fromItem(item)
			if err != nil {
				return nil, err
			}
			docs = append(docs, doc)
		}
	}

	sortNewestFirst(docs)
	return paginate(docs, opts.Offset, opts.Limit), nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (ports.Document, error) {
	out, err := s.client.GetItem(ctx, &awsdynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       key(collection, id),
	})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ports.ErrNotFound)
	}
	return fromItem(out.Item)
}

func (s *Store) Insert(ctx context.Context, collection string, doc ports.Document) (ports.Document, error) {
	id := doc.ID()
	if id == "" {
		return nil, errors.New("document has no id")
	}

	item, err := toItem(collection, doc)
	if err != nil {
		return nil, err
	}
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name(sortKey))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = s.client.PutItem(ctx, &awsdynamodb.PutItemInput{
		TableName:                aws.String(s.table),
		Item:                     item,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, fmt.Errorf("%s/%s already exists", collection, id)
		}
		return nil, fmt.Errorf("put %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Update sets each patch field on an existing item.
func (s *Store) Update(ctx context.Context, collection, id string, patch ports.Document) (ports.Document, error) {
	var update expression.UpdateBuilder
	fields := 0
	for k, v := range patch {
		if k == sortKey || k == partitionKey {
			continue
		}
		if fields == 0 {
			update = expression.Set(expression.Name(k), expression.Value(v))
		} else {
			update = update.Set(expression.Name(k), expression.Value(v))
		}
		fields++
	}
	if fields == 0 {
		return s.Get(ctx, collection, id)
	}

	expr, err := expression.NewBuilder().
		WithUpdate(update).
		WithCondition(expression.AttributeExists(expression.Name(sortKey))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build update: %w", err)
	}

	out, err := s.client.UpdateItem(ctx, &awsdynamodb.UpdateItemInput{
		TableName:                 aws.String(s.table),
		Key:                       key(collection, id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, missing(collection, id, err)
	}
	return fromItem(out.Attributes)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeExists(expression.Name(sortKey))).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = s.client.DeleteItem(ctx, &awsdynamodb.DeleteItemInput{
		TableName:                aws.String(s.table),
		Key:                      key(collection, id),
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		return missing(collection, id, err)
	}
	return nil
}

func missing(collection, id string, err error) error {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return fmt.Errorf("%s/%s: %w", collection, id, ports.ErrNotFound)
	}
	return fmt.Errorf("%s/%s: %w", collection, id, err)
}

func key(collection, id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		partitionKey: &types.AttributeValueMemberS{Value: collection},
		sortKey:      &types.AttributeValueMemberS{Value: id},
	}
}

// keyCondition selects the collection partition and moves an id filter
// into the key condition, since DynamoDB rejects key attributes in a
// filter expression. The remaining filters are returned.
func keyCondition(collection string, filter map[string]string) (expression.KeyConditionBuilder, map[string]string) {
	cond := expression.Key(partitionKey).Equal(expression.Value(collection))
	rest := make(map[string]string, len(filter))
	for k, v := range filter {
		switch k {
		case sortKey:
			cond = cond.And(expression.Key(sortKey).Equal(expression.Value(v)))
		case partitionKey:
		default:
			rest[k] = v
		}
	}
	return cond, rest
}

func filterCondition(filter map[string]string) (expression.ConditionBuilder, bool) {
	conds := make([]expression.ConditionBuilder, 0, len(filter))
	for k, v := range filter {
		conds = append(conds, expression.Name(k).Equal(expression.Value(v)))
	}
	switch len(conds) {
	case 0:
		return expression.ConditionBuilder{}, false
	case 1:
		return conds[0], true
	default:
		return expression.And(conds[0], conds[1], conds[2:]...), true
	}
}

func toItem(collection string, doc ports.Document) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(map[string]interface{}(doc))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal document: %w", err)
	}
	item[partitionKey] = &types.AttributeValueMemberS{Value: collection}
	return item, nil
}

func fromItem(item map[string]types.AttributeValue) (ports.Document, error) {
	var raw map[string]interface{}
	if err := attributevalue.UnmarshalMap(item, &raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal document: %w", err)
	}
	delete(raw, partitionKey)
	return ports.Document(raw), nil
}

func sortNewestFirst(docs []ports.Document) {
	sort.SliceStable(docs, func(i, j int) bool {
		a, _ := docs[i]["createdAt"].(string)
		b, _ := docs[j]["createdAt"].(string)
		return a > b
	})
}

func paginate(docs []ports.Document, offset, limit int) []ports.Document {
	if offset >= len(docs) {
		return []ports.Document{}
	}
	docs = docs[offset:]
	if limit > 0 && limit < len(docs) {
		docs = docs[:limit]
	}
	return docs
}
