package typegen

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blimu-dev/typegen/pkg/ir"
	"github.com/blimu-dev/typegen/pkg/typemap"
)

const petDocument = `
openapi: 3.0.3
info:
  title: Pet Store
  version: 1.0.0
components:
  schemas:
    Dog:
      type: object
      required: [name]
      properties:
        name: {type: string}
    Cat:
      type: object
      properties:
        name: {type: string}
    Pet:
      oneOf:
        - $ref: '#/components/schemas/Dog'
        - $ref: '#/components/schemas/Cat'
      discriminator:
        propertyName: petType
`

func writePetDocument(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "petstore.yaml")
	require.NoError(t, os.WriteFile(path, []byte(petDocument), 0o644))
	return path
}

func TestResolveDocumentEndToEnd(t *testing.T) {
	engine := NewEngine(Options{})
	result, err := engine.ResolveDocument(context.Background(), writePetDocument(t))
	require.NoError(t, err)
	require.False(t, result.Failed(), "all three schemas must resolve: %v", result.Errors)
	assert.Equal(t, []string{"Cat", "Dog", "Pet"}, result.Names())

	pet := result.Schemas["Pet"]
	require.Equal(t, ir.KindOneOfFamily, pet.Kind)
	assert.Equal(t, "petType", pet.Discriminator)
	assert.True(t, pet.IsRequired("petType"))
	require.Len(t, pet.Variants, 2)
	assert.Equal(t, "Dog", pet.Variants[0].Name)
	assert.Equal(t, "Cat", pet.Variants[1].Name)

	desc, err := typemap.Map(pet, []string{"components", "schemas", "Pet"})
	require.NoError(t, err)
	assert.Equal(t, typemap.KindSum, desc.Kind)
	require.Len(t, desc.Variants, 2)
	for _, v := range desc.Variants {
		require.Len(t, v.Fields, 1)
		assert.Equal(t, "name", v.Fields[0].Name)
	}
}

func TestTypeAndValidationsForDogName(t *testing.T) {
	engine := NewEngine(Options{})
	result, err := engine.ResolveDocument(context.Background(), writePetDocument(t))
	require.NoError(t, err)

	dog := result.Schemas["Dog"]
	desc, directives, err := engine.TypeAndValidationsFor(dog, "name")
	require.NoError(t, err)
	assert.Equal(t, typemap.KindPrimitive, desc.Kind)
	assert.Equal(t, typemap.String, desc.Primitive)
	require.Len(t, directives, 1, "required name yields exactly a not-null directive")
	assert.Equal(t, "@NotNull", directives[0].Render())

	_, _, err = engine.TypeAndValidationsFor(dog, "nope")
	require.Error(t, err)
}

func TestEvaluateConditionStandalone(t *testing.T) {
	ok, err := EvaluateCondition("status == 'ACTIVE'", map[string]any{"status": "ACTIVE"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateCondition("status == 'ACTIVE'", map[string]any{"status": "PENDING"})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = EvaluateCondition("role in admin", nil)
	require.Error(t, err)
}

func TestValidateSpec(t *testing.T) {
	require.NoError(t, ValidateSpec(writePetDocument(t)))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("openapi: 2.0\ninfo: {title: T, version: 1}\npaths: {}\n"), 0o644))
	require.Error(t, ValidateSpec(bad))
}
