package scriptvalidate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_ValidScriptPasses(t *testing.T) {
	src := `
export default async function (client: Client) {
  return client.items.list();
}
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.True(t, result.Valid)
	require.Empty(t, result.Violations)
}

func TestValidate_InvalidImportIsRejected(t *testing.T) {
	src := `
import axios from "axios";

export default async function (client: Client) {
  return client.items.list();
}
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.False(t, result.Valid)

	var found bool
	for _, v := range result.Violations {
		if v.Message == `Invalid import: "axios" (allowed: @datocms/*, datocms-*, ./schema)` {
			found = true
		}
	}
	require.True(t, found, "violations: %+v", result.Violations)
}

func TestValidate_AllowedImportsPass(t *testing.T) {
	src := `
import { buildClient } from "@datocms/cma-client-node";
import helpers from "datocms-client-helpers";
import { Model } from "./schema";

export default async function (client: Client) {
  return client.items.list();
}
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.True(t, result.Valid, "violations: %+v", result.Violations)
}

func TestValidate_DefaultExportFollowsIdentifier(t *testing.T) {
	src := `
const run = async (client: Client) => {
  return client.items.list();
};

export default run;
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.True(t, result.Valid, "violations: %+v", result.Violations)
}

func TestValidate_MissingDefaultExport(t *testing.T) {
	src := `
export const run = async (client: Client) => {
  return client.items.list();
};
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.Contains(t, result.Violations[0].Message, "missing default export")
}

func TestValidate_WrongParameterCountIsRejected(t *testing.T) {
	src := `
export default async function (client: Client, extra: string) {
  return client.items.list();
}
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.False(t, result.Valid)

	var found bool
	for _, v := range result.Violations {
		if v.Message == "default export function must take exactly one parameter" {
			found = true
		}
	}
	require.True(t, found, "violations: %+v", result.Violations)
}

func TestValidate_WrongParameterTypeIsRejected(t *testing.T) {
	src := `
export default async function (client: string) {
  return client;
}
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.False(t, result.Valid)

	var found bool
	for _, v := range result.Violations {
		if v.Message == `default export parameter must be annotated Client or ReturnType<typeof buildClient>, got "string"` {
			found = true
		}
	}
	require.True(t, found, "violations: %+v", result.Violations)
}

func TestValidate_ReturnTypeClientAliasIsAccepted(t *testing.T) {
	src := `
export default async function (client: ReturnType<typeof buildClient>) {
  return client.items.list();
}
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.True(t, result.Valid, "violations: %+v", result.Violations)
}

func TestValidate_MissingAsyncOrPromiseReturnIsRejected(t *testing.T) {
	src := `
export default function (client: Client) {
  return client.items.list();
}
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.False(t, result.Valid)

	var found bool
	for _, v := range result.Violations {
		if v.Message == "default export function must be async or declare a Promise<...> return type" {
			found = true
		}
	}
	require.True(t, found, "violations: %+v", result.Violations)
}

func TestValidate_NonAsyncPromiseReturnIsAccepted(t *testing.T) {
	src := `
export default function (client: Client): Promise<unknown> {
  return client.items.list();
}
`
	result, err := Validate(src)
	require.NoError(t, err)

	for _, v := range result.Violations {
		require.NotContains(t, v.Message, "must be async")
	}
}

func TestValidate_AnyAndUnknownAreReportedWithLineAndColumn(t *testing.T) {
	src := `export default async function (client: Client) {
  const x: any = 1;
  const y: unknown = 2;
  return client.items.list();
}
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.False(t, result.Valid)

	var anyViolation, unknownViolation *Violation
	for i := range result.Violations {
		v := &result.Violations[i]
		switch v.Message {
		case `type "any" is not allowed`:
			anyViolation = v
		case `type "unknown" is not allowed`:
			unknownViolation = v
		}
	}
	require.NotNil(t, anyViolation, "violations: %+v", result.Violations)
	require.NotNil(t, unknownViolation, "violations: %+v", result.Violations)
	require.Equal(t, 2, anyViolation.Line)
	require.Equal(t, 3, unknownViolation.Line)
	require.Greater(t, anyViolation.Column, 1)
}

func TestValidate_CollectsAllViolationsAtOnce(t *testing.T) {
	src := `
import axios from "axios";

export default function (client: string, extra: any) {
  return 1;
}
`
	result, err := Validate(src)
	require.NoError(t, err)
	require.False(t, result.Valid)
	require.GreaterOrEqual(t, len(result.Violations), 3)
}
