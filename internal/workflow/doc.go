// Package workflow runs the classification-driven dispatch tree.
//
// A tree is built from Steps: a Branch invokes a classifier and resolves
// its value to the next Step, a Single runs one generation stage, a
// ChainCoordinator runs two or three stages in order and an ApprovalGate
// decides between two follow-ups. Terminals end the execution.
//
// The Engine walks the tree for one request. Every request owns its
// transcript and Execution; the engine itself holds no per-request state
// and is safe for concurrent use.
package workflow
