// ABOUTME: Package tools holds the tool registry and the weather dispatcher.
// ABOUTME: Transports depend only on the Invoker interface defined here.
package tools
