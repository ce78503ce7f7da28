package awsclients

import "fmt"

// AliasNotFoundError signals that no key exists under the given alias.
type AliasNotFoundError struct {
	Alias string
}

func (e *AliasNotFoundError) Error() string {
	return fmt.Sprintf("key alias %s not found", e.Alias)
}

// KeyNotFoundError signals that the referenced key does not exist.
type KeyNotFoundError struct {
	KeyID string
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("key %s not found", e.KeyID)
}

// TopicNotFoundError signals that the referenced topic does not exist.
type TopicNotFoundError struct {
	TopicARN string
}

func (e *TopicNotFoundError) Error() string {
	return fmt.Sprintf("topic %s not found", e.TopicARN)
}

// BucketAlreadyExistsError signals that the bucket name is taken,
// whether by this account or globally by another.
type BucketAlreadyExistsError struct {
	Name string
}

func (e *BucketAlreadyExistsError) Error() string {
	return fmt.Sprintf("bucket %s already exists", e.Name)
}

// BucketNotEmptyError signals a delete attempt on a bucket that still
// holds objects.
type BucketNotEmptyError struct {
	Name string
}

func (e *BucketNotEmptyError) Error() string {
	return fmt.Sprintf("bucket %s is not empty", e.Name)
}

// BucketNotFoundError signals that the referenced bucket does not exist.
type BucketNotFoundError struct {
	Name string
}

func (e *BucketNotFoundError) Error() string {
	return fmt.Sprintf("bucket %s not found", e.Name)
}
