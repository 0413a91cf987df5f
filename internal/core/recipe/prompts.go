package recipe

import (
	"fmt"
	"strings"

	"recipe-resolver/internal/core/resolver"
	"recipe-resolver/internal/pkg/common"
)

// 所有提示詞共用的輸出規則
const replyRules = `Rules:
1. Reply with exactly one compact JSON object and nothing else, no markdown fences.
2. All keys and string values must use double quotes.
3. Use plain ingredient names without quantities.
4. If you cannot answer, reply {"found": false}.`

func suggestPrompt(ingredients []string, limit int) string {
	return fmt.Sprintf(`Suggest up to %d recipes that can be cooked mainly with these ingredients: %s.
Prefer recipes that use as many of the listed ingredients as possible.

%s

Format:
{"recipes":[{"name":"Recipe name","ingredients":["ingredient","ingredient"]}]}`,
		limit, common.JoinList(ingredients), replyRules)
}

func similarPrompt(recipe string, limit int) string {
	return fmt.Sprintf(`Suggest up to %d recipes that are similar in style, cuisine or technique to "%s".
Do not include "%s" itself.

%s

Format:
{"recipes":[{"name":"Recipe name","ingredients":["ingredient","ingredient"]}]}`,
		limit, recipe, recipe, replyRules)
}

func requiredIngredientsPrompt(required []string, recipeContext string, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest up to %d recipes that MUST contain every one of these ingredients: %s.\n",
		limit, common.JoinList(required))
	if recipeContext != "" {
		fmt.Fprintf(&b, "The recipes should fit this context: %s.\n", recipeContext)
	}
	fmt.Fprintf(&b, "\n%s\n\nFormat:\n%s", replyRules,
		`{"recipes":[{"name":"Recipe name","ingredients":["ingredient","ingredient"]}]}`)
	return b.String()
}

func detailsPrompt(recipe string) string {
	return fmt.Sprintf(`Give the full ingredient list and the step-by-step cooking method for the recipe "%s".

%s

Format:
{"found":true,"ingredients":["ingredient","ingredient"],"cooking_method":["Step one","Step two"]}`,
		recipe, replyRules)
}

func customRecipePrompt(recipe string, substitutes []string) string {
	return fmt.Sprintf(`Rewrite the recipe "%s" so that it uses these substitute ingredients: %s.
Give the new recipe a fitting name and list all of its ingredients.

%s

Format:
{"found":true,"name":"New recipe name","ingredients":["ingredient","ingredient"]}`,
		recipe, common.JoinList(substitutes), replyRules)
}

func substitutionPrompt(recipe, originalIngredients, originalIngredient, newIngredient string) string {
	return fmt.Sprintf(`The recipe "%s" uses these ingredients: %s.
Replace "%s" with "%s" and give the updated ingredient list and the updated step-by-step cooking method.
Adjust quantities, timing and technique where the replacement needs it.

%s

Format:
{"found":true,"ingredients":["ingredient","ingredient"],"cooking_method":["Step one","Step two"]}`,
		recipe, originalIngredients, originalIngredient, newIngredient, replyRules)
}

func substitutesPrompt(ingredient, recipeContext string, limit int, includeReasoning bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest up to %d substitutes for the ingredient \"%s\" when cooking \"%s\".\n",
		limit, ingredient, recipeContext)
	b.WriteString("Order them from best to worst replacement.\n\n")
	b.WriteString(replyRules)
	b.WriteString("\n\nFormat:\n")
	if includeReasoning {
		b.WriteString(`{"substitutes":["substitute"],"reasons":{"substitute":"One sentence on why it works"}}`)
	} else {
		b.WriteString(`{"substitutes":["substitute"]}`)
	}
	return b.String()
}

func contextPrompt(filter resolver.ContextFilter, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Suggest up to %d ingredients that match the following description.\n", limit)

	attrs := []struct{ label, value string }{
		{"Taste", filter.Taste},
		{"Texture", filter.Texture},
		{"Color", filter.Color},
		{"Cooking method", filter.CookingMethod},
		{"Recipe", filter.RecipeTitle},
		{"Description", filter.NaturalDescription},
	}
	written := 0
	for _, a := range attrs {
		if a.value == "" {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", a.label, a.value)
		written++
	}
	if written == 0 {
		b.WriteString("- No constraints given: suggest versatile everyday ingredients.\n")
	}

	fmt.Fprintf(&b, "\n%s\n\nFormat:\n%s", replyRules, `{"ingredients":["ingredient","ingredient"]}`)
	return b.String()
}
