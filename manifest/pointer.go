package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/pqscan/blobstore"
)

// Pointer tracks which manifest blob is current.
type Pointer interface {
	// Current returns the name of the current manifest blob, or
	// blobstore.ErrNotFound if nothing has been published.
	Current(ctx context.Context) (string, error)

	// Publish makes the named manifest current.
	Publish(ctx context.Context, name string) error
}

// ErrConcurrentPublish is returned when another writer published a version
// concurrently.
var ErrConcurrentPublish = errors.New("manifest: concurrent publish detected")

// blobPointer keeps the pointer in a CURRENT blob. Last writer wins, so it
// is only suitable for a single publisher.
type blobPointer struct {
	blobs blobstore.Store
}

const currentBlobName = "CURRENT"

func (p *blobPointer) Current(ctx context.Context) (string, error) {
	b, err := p.blobs.Open(ctx, currentBlobName)
	if err != nil {
		return "", err
	}
	defer b.Close()

	data := make([]byte, b.Size())
	if _, err := b.ReadAt(data, 0); err != nil && err != io.EOF {
		return "", err
	}
	return string(data), nil
}

func (p *blobPointer) Publish(ctx context.Context, name string) error {
	w, err := p.blobs.Create(ctx, currentBlobName)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(name)); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// DDBClient is the subset of the DynamoDB API the pointer uses.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DDBPointer keeps the version pointer in a DynamoDB table, giving multiple
// publishers compare-and-swap semantics that object stores lack. Each
// publish appends a row keyed (dataset, version) with a conditional put, so
// two concurrent publishes of the same version cannot both succeed.
//
// Table schema: partition key "dataset" (S), sort key "version" (N).
type DDBPointer struct {
	client  DDBClient
	table   string
	dataset string
}

// NewDDBPointer creates a pointer for one dataset in the given table.
func NewDDBPointer(client DDBClient, table, dataset string) *DDBPointer {
	return &DDBPointer{
		client:  client,
		table:   table,
		dataset: dataset,
	}
}

// Current returns the manifest name of the highest committed version.
func (p *DDBPointer) Current(ctx context.Context) (string, error) {
	_, name, err := p.latest(ctx)
	if err != nil {
		return "", err
	}
	if name == "" {
		return "", blobstore.ErrNotFound
	}
	return name, nil
}

// Publish commits the named manifest as the next version.
func (p *DDBPointer) Publish(ctx context.Context, name string) error {
	version, _, err := p.latest(ctx)
	if err != nil {
		return err
	}

	_, err = p.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(p.table),
		Item: map[string]types.AttributeValue{
			"dataset":  &types.AttributeValueMemberS{Value: p.dataset},
			"version":  &types.AttributeValueMemberN{Value: strconv.FormatUint(version+1, 10)},
			"manifest": &types.AttributeValueMemberS{Value: name},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var cond *types.ConditionalCheckFailedException
		if errors.As(err, &cond) {
			return ErrConcurrentPublish
		}
		return err
	}
	return nil
}

func (p *DDBPointer) latest(ctx context.Context) (uint64, string, error) {
	resp, err := p.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(p.table),
		KeyConditionExpression: aws.String("dataset = :d"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":d": &types.AttributeValueMemberS{Value: p.dataset},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", err
	}
	if len(resp.Items) == 0 {
		return 0, "", nil
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("manifest: missing version attribute")
	}
	nameAttr, ok := item["manifest"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("manifest: missing manifest attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("manifest: bad version %q: %w", versionAttr.Value, err)
	}
	return version, nameAttr.Value, nil
}
