package scriptstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreate_EnforcesNameFormatAndUniqueness(t *testing.T) {
	s := New(nil)

	_, err := s.Create("bad-name.ts", "x")
	require.Error(t, err)

	_, err = s.Create("script://a.ts", "x")
	require.NoError(t, err)

	_, err = s.Create("script://a.ts", "y")
	require.Error(t, err)
}

func TestCreate_AlwaysSavesEvenWhenValidatorFails(t *testing.T) {
	s := New(func(content string) (ValidationResult, error) {
		return ValidationResult{Valid: false, Errors: []string{"bad import"}}, nil
	})

	result, err := s.Create("script://a.ts", "import axios from 'axios'")
	require.NoError(t, err)
	require.False(t, result.Valid)

	content, ok := s.View("script://a.ts")
	require.True(t, ok)
	require.Equal(t, "import axios from 'axios'", content)
}

func TestUpdate_SingleReplacement(t *testing.T) {
	s := New(nil)
	_, err := s.Create("script://a.ts", "items.list()")
	require.NoError(t, err)

	_, err = s.Update("script://a.ts", []Edit{{OldStr: "items.list()", NewStr: "items.find('x')"}})
	require.NoError(t, err)

	content, _ := s.View("script://a.ts")
	require.Equal(t, "items.find('x')", content)
}

func TestUpdate_OrderedEditsWhereEarlierEnablesLater(t *testing.T) {
	s := New(nil)
	_, err := s.Create("script://a.ts", "foo")
	require.NoError(t, err)

	_, err = s.Update("script://a.ts", []Edit{
		{OldStr: "foo", NewStr: "bar bar"},
		{OldStr: "bar bar", NewStr: "baz"},
	})
	require.NoError(t, err)

	content, _ := s.View("script://a.ts")
	require.Equal(t, "baz", content)
}

func TestUpdate_NotFoundTaggedWithIndex(t *testing.T) {
	s := New(nil)
	_, err := s.Create("script://a.ts", "foo")
	require.NoError(t, err)

	_, err = s.Update("script://a.ts", []Edit{
		{OldStr: "foo", NewStr: "bar"},
		{OldStr: "nope", NewStr: "x"},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "edit 2")
	require.Contains(t, err.Error(), "not found")
}

func TestUpdate_MustBeUniqueTaggedWithIndex(t *testing.T) {
	s := New(nil)
	_, err := s.Create("script://a.ts", "foo foo")
	require.NoError(t, err)

	_, err = s.Update("script://a.ts", []Edit{{OldStr: "foo", NewStr: "bar"}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "edit 1")
	require.Contains(t, err.Error(), "must be unique")
}

func TestUpdate_UnknownScript(t *testing.T) {
	s := New(nil)
	_, err := s.Update("script://missing.ts", []Edit{{OldStr: "a", NewStr: "b"}})
	require.Error(t, err)
}

func TestBaseName(t *testing.T) {
	require.Equal(t, "a.ts", BaseName("script://a.ts"))
}
