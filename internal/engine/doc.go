// Package engine executes model operations against a SQLite store.
//
// The engine owns both halves of the persistence round trip:
//
// Write path:
// 1. Managed datetime fields are stamped when the caller left them absent.
// 2. Values run through the validation pipeline with the engine's live
//    reference lookup injected.
// 3. Normalized values convert to their stored form in declaration order.
// 4. sqlgen renders the statement, the store binds and executes it.
//
// Read path:
// Stored primitives hydrate back through each field's codec into a Record.
// Plain filters stream from the live cursor; the store admits one statement
// at a time, so anything that needs follow-up queries (eager reference
// resolution) drains the cursor first.
//
// The engine never concatenates values into SQL. Statement text comes from
// sqlgen and every value travels as a bound parameter.
package engine
