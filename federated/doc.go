// Package federated runs a Google sign-in prompt as one awaited call.
//
// A [Prompter] shows the account chooser and returns the ID token the user picked. [SignIn]
// bounds the prompt with a timeout and reads the profile out of the token. The backend verifies
// the token during the exchange; nothing here does.
package federated
