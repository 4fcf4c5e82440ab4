package domain

import (
	"fmt"
	"time"
)

// DocumentChunk is a bounded span of text prepared for embedding and
// retrieval. Many chunks can share one SourceID (a document), and a
// transaction-derived chunk uses the transaction ID as its SourceID so that
// deleting the source cascades to every derived chunk.
// A chunk is only eligible for retrieval once Embedding is populated.
type DocumentChunk struct {
	ID        string
	UserID    string
	SourceID  string
	Text      string
	Embedding []float32
	Position  int // ordinal of the chunk within its source
	CreatedAt time.Time
}

// Ref returns the stable reference id used to cite this chunk as evidence.
func (c *DocumentChunk) Ref() string {
	return fmt.Sprintf("doc:%s#%d", c.SourceID, c.Position)
}

// TransactionRef returns the stable reference id used to cite a transaction.
func TransactionRef(transactionID string) string {
	return "txn:" + transactionID
}
