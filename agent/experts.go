package agent

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/etnz/folio"
	"github.com/etnz/folio/docs"
	"github.com/etnz/folio/renderer"
	"google.golang.org/genai"
)

const model = "gemini-2.5-pro"

// Vault is the read side of a vault the Accountant works on.
// *folio.Module implements it.
type Vault interface {
	Summary() folio.Summary
	Account(depositor common.Address) (folio.Account, bool)
	Events() []folio.Event
}

// creates the facilitator
func newFacilitator(experts ...*Expert) *Expert {
	return &Expert{
		Name:      "Facilitator",
		ModelName: model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{FunctionDeclarations: NewDeclaration(experts)},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
			As a facilitator you are in charge of the conversation and solving the user's request.

			Learn about the expert's skill that you can get from the Tools to ask them questions.
			They are at your service and keep context of your previous questions.

			The user is a depositor or the manager of a vault holding a basket of tokens.
			Devise a plan of questions to ask to each expert and come up with the best response to the user's request.
		`}}},
		},
		Library: NewLibrary(experts),
	}
}

// NewResearcher returns an expert grounded in Google Search, for news about the basket tokens.
func NewResearcher() *Expert {
	return &Expert{
		Name: "Researcher",
		Description: `This is an expert of crypto markets, aware of tokens, exchanges and their latest news.
		Ask the Researcher whenever you need recent or grounding information.`,
		ModelName: model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
			You are an expert of crypto markets. You leverage Google Search to
			ground your assertions in a solid truth, and relate the latest news to the user's request.
			`}}},
		},
	}
}

// NewAccountant returns the expert reading the vault statements.
func NewAccountant(v Vault, opts renderer.Options) *Expert {
	lib := VaultFunctions(v, opts)
	return &Expert{
		Name: "Accountant",
		Description: `This is the Accountant. It reads the vault statements: holdings, shares,
		depositor accounts, fees owed and the journal of deposits and withdrawals.`,
		ModelName: model,
		Config: &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{FunctionDeclarations: NewDeclaration(lib)},
			},
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: `
				You are the accountant of a vault. Use the Tools to read its statements.
				You are part of a team of experts, yours is everything about the vault figures.
				Pardon their approximative language and figure out what they meant.

				This is how the vault works:

				` + must(docs.GetTopics("vault", "fees"))}}},
		},
		Library: NewLibrary(lib),
	}
}

// VaultFunctions returns the functions reading the statements of v.
func VaultFunctions(v Vault, opts renderer.Options) []*Func {
	return []*Func{
		{
			Decl: &genai.FunctionDeclaration{
				Name:        "Summary",
				Description: "Summary returns the vault holdings, total shares, fees and every depositor account.",
				Response: &genai.Schema{
					Type:        genai.TypeString,
					Description: "A markdown-formatted vault summary.",
				},
			},
			Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
				return outputResponse(id, "Summary", renderer.RenderSummary(v.Summary(), opts))
			},
		},
		{
			Decl: &genai.FunctionDeclaration{
				Name:        "Account",
				Description: "Account returns the shares, principal and fee owed of a depositor.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"depositor": {
							Type:        genai.TypeString,
							Description: "The depositor address, in hex (0x...).",
						},
					},
					Required: []string{"depositor"},
				},
				Response: &genai.Schema{
					Type:        genai.TypeString,
					Description: "A markdown-formatted account statement.",
				},
			},
			Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
				s, err := stringArg(args, "depositor")
				if err != nil {
					return errorResponse(id, "Account", err)
				}
				if !common.IsHexAddress(s) {
					return errorResponse(id, "Account", fmt.Errorf("argument 'depositor' must be a hex address got %q", s))
				}
				a, ok := v.Account(common.HexToAddress(s))
				if !ok {
					return errorResponse(id, "Account", fmt.Errorf("%s never deposited in this vault", s))
				}
				return outputResponse(id, "Account", renderer.RenderAccount(a, opts))
			},
		},
		{
			Decl: &genai.FunctionDeclaration{
				Name:        "Journal",
				Description: "Journal lists every operation committed by the vault, oldest first.",
				Response: &genai.Schema{
					Type:        genai.TypeString,
					Description: "A markdown-formatted table of events.",
				},
			},
			Func: func(ctx context.Context, id string, args map[string]any) *genai.FunctionResponse {
				return outputResponse(id, "Journal", renderer.RenderJournal(v.Events(), opts))
			},
		},
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}
