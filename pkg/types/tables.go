package types

import "fmt"

type TableName string

func (s TableName) Name() string {
	return fmt.Sprintf("%s%s", TABLE_PREFIX, s)
}

const TABLE_PREFIX = "mf_"

const (
	TABLE_DOCUMENT       = TableName("document")
	TABLE_DOCUMENT_CHUNK = TableName("document_chunk")
	TABLE_CHUNK_VECTOR   = TableName("chunk_vector")
	TABLE_CONCEPT_VECTOR = TableName("concept_vector")
	TABLE_AGENT_RUN      = TableName("agent_run")
	TABLE_FLASHCARD      = TableName("flashcard")
	TABLE_CONCEPT        = TableName("concept")
	TABLE_KG_EDGE        = TableName("kg_edge")
)
