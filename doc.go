// Package climatechat is a multilingual climate question answering
// service.
//
// It answers climate questions grounded in a curated document index,
// in the user's language. A query flows through a fixed pipeline:
// guard classification (topic, harm, language match), cache lookup,
// backend routing by language, hybrid vector retrieval with reranking,
// grounded generation with citations, a faithfulness check, and an
// optional web-search fallback when the grounded answer scores poorly.
//
// # Quick Start
//
// Create a configuration file:
//
//	models:
//	  cohere:
//	    api_key: ${COHERE_API_KEY}
//	index:
//	  provider: pinecone
//	  pinecone:
//	    api_key: ${PINECONE_API_KEY}
//	    index_name: climate-chat-index
//	redis:
//	  enabled: true
//	  addr: localhost:6379
//
// Start the server:
//
//	climatechat serve --config config.yaml
//
// Ask a question over HTTP:
//
//	curl -s localhost:8080/api/v1/chat/query \
//	  -d '{"query": "Why is sea level rising?", "language": "en"}'
//
// Or from the command line, without the server:
//
//	climatechat query --config config.yaml --lang en "Why is sea level rising?"
//
// # Packages
//
// The pipeline itself lives in pkg/pipeline, with each stage in its
// own package:
//
//	import (
//	    "github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/classify"
//	    "github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/retrieval"
//	    "github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/generation"
//	    "github.com/Climate-Resilient-Communities/climate-multilingual-chatbot-sub001/pkg/faithfulness"
//	)
//
// pkg/server exposes the pipeline over HTTP, pkg/cache holds the
// Redis response cache, and pkg/languages owns the supported-language
// table and routing rules.
//
// # Local Development
//
// The service runs without Pinecone or Redis for local work: set
// index.provider to chromem and seed it from a JSONL file:
//
//	climatechat seed --config config.yaml documents.jsonl
package climatechat
