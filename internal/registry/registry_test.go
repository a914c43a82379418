package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanstork/alert-api/internal/event"
	"github.com/stanstork/alert-api/internal/models"
)

type orderShippedAlert struct{}

func (orderShippedAlert) Title() string                           { return "Order shipped" }
func (orderShippedAlert) Default() Default                        { return UniformDefault(true) }
func (orderShippedAlert) Binding() Binding                        { return Binding{Kind: "order.shipped"} }
func (orderShippedAlert) ApplicableUsers(event.Event) interface{} { return nil }

// orderDelayedAlert embeds orderShippedAlert without overriding anything
// relevant to registration.
type orderDelayedAlert struct{ orderShippedAlert }

type markupDigestAlert struct{ orderShippedAlert }

func (markupDigestAlert) Filetype() Filetype { return FiletypeMarkup }

type smtpBackend struct{}

func (smtpBackend) Title() string                            { return "SMTP" }
func (smtpBackend) Send(context.Context, models.Alert) error { return nil }

func TestRegisterAlertType_ExplicitIdentifier(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAlertType("order_shipped", orderShippedAlert{}))

	got, ok := r.AlertType("order_shipped")
	assert.True(t, ok)
	assert.Equal(t, "Order shipped", got.Title())
}

func TestRegisterAlertType_DuplicateIdentifier(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAlertType("order_shipped", orderShippedAlert{}))

	err := r.RegisterAlertType("order_shipped", orderShippedAlert{})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "alert type", dup.Kind)
	assert.Equal(t, "order_shipped", dup.ID)
}

func TestRegisterAlertType_DerivedIdentifierPerConcreteType(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAlertType("", orderShippedAlert{}))
	// The embedding type registers under its own name, not the parent's.
	require.NoError(t, r.RegisterAlertType("", orderDelayedAlert{}))
	require.NoError(t, r.RegisterAlertType("", &markupDigestAlert{}))

	_, ok := r.AlertType("orderShippedAlert")
	assert.True(t, ok)
	_, ok = r.AlertType("orderDelayedAlert")
	assert.True(t, ok)
	_, ok = r.AlertType("markupDigestAlert")
	assert.True(t, ok, "pointer registration derives the element type name")

	err := r.RegisterAlertType("", orderShippedAlert{})
	var dup *DuplicateError
	assert.ErrorAs(t, err, &dup)
}

func TestRegisterBackend_DuplicateIdentifier(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterBackend("email", smtpBackend{}))

	err := r.RegisterBackend("email", smtpBackend{})
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "backend", dup.Kind)
}

func TestRegistrationOrderIsPreserved(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterAlertType("b_type", orderShippedAlert{}))
	require.NoError(t, r.RegisterAlertType("a_type", orderDelayedAlert{}))
	require.NoError(t, r.RegisterBackend("push", smtpBackend{}))
	require.NoError(t, r.RegisterBackend("email", smtpBackend{}))

	var typeIDs []string
	for _, entry := range r.AlertTypes() {
		typeIDs = append(typeIDs, entry.ID)
	}
	assert.Equal(t, []string{"b_type", "a_type"}, typeIDs)

	var backendIDs []string
	for _, entry := range r.Backends() {
		backendIDs = append(backendIDs, entry.ID)
	}
	assert.Equal(t, []string{"push", "email"}, backendIDs)
}

func TestTypeFiletype(t *testing.T) {
	assert.Equal(t, FiletypeText, TypeFiletype(orderShippedAlert{}))
	assert.Equal(t, FiletypeMarkup, TypeFiletype(markupDigestAlert{}))
}

func TestDefault_Uniform(t *testing.T) {
	d := UniformDefault(true)
	for _, backend := range []string{"email", "push", "anything"} {
		value, err := d.For(backend)
		require.NoError(t, err)
		assert.True(t, value)
	}
}

func TestDefault_PerBackend(t *testing.T) {
	d := PerBackendDefault(map[string]bool{"email": true, "push": false})

	value, err := d.For("email")
	require.NoError(t, err)
	assert.True(t, value)

	value, err = d.For("push")
	require.NoError(t, err)
	assert.False(t, value)

	_, err = d.For("sms")
	assert.ErrorIs(t, err, ErrNoDefault)
}

func TestDefault_PerBackendCopiesInput(t *testing.T) {
	values := map[string]bool{"email": true}
	d := PerBackendDefault(values)
	values["email"] = false

	got, err := d.For("email")
	require.NoError(t, err)
	assert.True(t, got)
}
