package voice

import (
	"context"

	"github.com/kirill-jjj/teamtalk-reg-system/internal/domain"
)

// Command is a request consumed exclusively by the worker. Each variant
// carries a single-use reply channel (buffered, capacity one) that the worker
// resolves exactly once.
type Command interface {
	isCommand()
}

// CreateAccountParams are the caller-supplied fields for account creation.
type CreateAccountParams struct {
	Username    domain.Username
	Password    domain.Password
	Nickname    domain.Nickname
	AccountType domain.AccountType
	Source      domain.RegistrationSource
	// SourceInfo overrides the default source description in account notes.
	SourceInfo string
}

type createAccountCommand struct {
	params CreateAccountParams
	reply  chan<- error
}

type deleteUserCommand struct {
	username domain.Username
	reply    chan<- error
}

type checkUserExistsCommand struct {
	username domain.Username
	reply    chan<- bool
}

type getAllUsersCommand struct {
	reply chan<- []string
}

type getOnlineUsersCommand struct {
	reply chan<- []domain.OnlineUser
}

func (createAccountCommand) isCommand()   {}
func (deleteUserCommand) isCommand()      {}
func (checkUserExistsCommand) isCommand() {}
func (getAllUsersCommand) isCommand()     {}
func (getOnlineUsersCommand) isCommand()  {}

// Queue is the multi-producer command channel into the worker. The helper
// methods enqueue a command and block until the worker resolves its reply
// slot or ctx is cancelled.
type Queue chan Command

// CreateAccount asks the worker to create a server account. A nil return
// means the server confirmed the account.
func (q Queue) CreateAccount(ctx context.Context, params CreateAccountParams) error {
	reply := make(chan error, 1)
	if err := q.enqueue(ctx, createAccountCommand{params: params, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeleteUser asks the worker to delete a server account.
func (q Queue) DeleteUser(ctx context.Context, username domain.Username) error {
	reply := make(chan error, 1)
	if err := q.enqueue(ctx, deleteUserCommand{username: username, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CheckUserExists reports whether an account with the given name exists.
// Failures degrade to false, matching the enumerate-then-search contract.
func (q Queue) CheckUserExists(ctx context.Context, username domain.Username) (bool, error) {
	reply := make(chan bool, 1)
	if err := q.enqueue(ctx, checkUserExistsCommand{username: username, reply: reply}); err != nil {
		return false, err
	}
	select {
	case exists := <-reply:
		return exists, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// GetAllUsers returns every account name on the server. Failures degrade to
// an empty list.
func (q Queue) GetAllUsers(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := q.enqueue(ctx, getAllUsersCommand{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case users := <-reply:
		return users, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// GetOnlineUsers returns the users currently connected to the server.
func (q Queue) GetOnlineUsers(ctx context.Context) ([]domain.OnlineUser, error) {
	reply := make(chan []domain.OnlineUser, 1)
	if err := q.enqueue(ctx, getOnlineUsersCommand{reply: reply}); err != nil {
		return nil, err
	}
	select {
	case users := <-reply:
		return users, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q Queue) enqueue(ctx context.Context, cmd Command) error {
	select {
	case q <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
