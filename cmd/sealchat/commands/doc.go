// Package commands defines the sealchat CLI and wires dependencies for subcommands.
//
// Commands
//
//   - init         Create the local identity
//   - fingerprint  Print the identity fingerprint
//   - login        Log in to the relay with a phone number and one-time code
//   - register     Publish your prekey bundle to the relay
//   - contacts     List your contacts or resolve phone numbers
//   - chats        List your chats or open one with a peer
//   - send         Encrypt and send a message
//   - listen       Stay connected and decrypt incoming messages
//   - history      List a chat's stored message rows
//   - replenish    Top up the server-side one-time prekey pool
//
// # Implementation
//
// The root command builds a dependency graph (encrypted file store, key
// vault, relay client, session manager) before any subcommand runs, so
// handlers share one app context.
package commands
