// Package stage implements the two kinds of calls a workflow makes against
// the text-generation capability.
//
// A Classifier maps the current transcript to one value of a closed set.
// A GenerationStage produces a free-text or schema-conforming artifact,
// optionally augmented with corpus retrieval or web search. Both append
// everything the generator produced to the shared transcript before
// returning, so that later stages see it as context.
//
// The generator itself is an interface; internal/llm provides the
// production implementation.
package stage
