package lookup

import (
	"context"
	"fmt"
	"strings"
)

type viaCEPAnswer struct {
	CEP        string `json:"cep"`
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Localidade string `json:"localidade"`
	UF         string `json:"uf"`
	// ViaCEP answers {"erro": true} with status 200 for unknown codes. Older
	// deployments send the string "true".
	Erro any `json:"erro"`
}

func (a *viaCEPAnswer) notFound() bool {
	switch v := a.Erro.(type) {
	case bool:
		return v
	case string:
		return v == "true"
	}
	return false
}

// Postal looks up an 8-digit postal code (CEP).
func (c *Client) Postal(ctx context.Context, cep string) Result {
	return c.cached("cep:"+cep, func() Result {
		u := fmt.Sprintf("%s/%s/json/", strings.TrimSuffix(c.postalURL, "/"), cep)

		var ans viaCEPAnswer
		found, fail := c.get(ctx, u, &ans)
		if fail != nil {
			return *fail
		}
		if !found || ans.notFound() {
			return NotFound{Query: cep}
		}
		return Address{
			Street:     ans.Logradouro,
			Complement: ans.Bairro,
			City:       ans.Localidade,
			State:      ans.UF,
			PostalCode: ans.CEP,
		}
	})
}
