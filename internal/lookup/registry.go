package lookup

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

type registryAddress struct {
	Logradouro string `json:"logradouro"`
	Bairro     string `json:"bairro"`
	Municipio  string `json:"municipio"`
	UF         string `json:"uf"`
	CEP        string `json:"cep"`
}

type registryAnswer struct {
	Nome       string           `json:"nome"`
	Nascimento string           `json:"nascimento"`
	NomePai    string           `json:"nomePai"`
	NomeMae    string           `json:"nomeMae"`
	RG         string           `json:"rg"`
	Endereco   *registryAddress `json:"endereco"`
}

func (a *registryAddress) address() *Address {
	if a == nil {
		return nil
	}
	return &Address{
		Street:     a.Logradouro,
		Complement: a.Bairro,
		City:       a.Municipio,
		State:      a.UF,
		PostalCode: a.CEP,
	}
}

// Person looks up an 11-digit CPF.
func (c *Client) Person(ctx context.Context, cpf string) Result {
	return c.cached("cpf:"+cpf, func() Result {
		ans, res := c.registry(ctx, "cpf", cpf)
		if res != nil {
			return res
		}
		return Person{
			Name:       ans.Nome,
			BirthDate:  ans.Nascimento,
			FatherName: ans.NomePai,
			MotherName: ans.NomeMae,
			GovID:      ans.RG,
			Address:    ans.Endereco.address(),
		}
	})
}

// Entity looks up a 14-digit CNPJ.
func (c *Client) Entity(ctx context.Context, cnpj string) Result {
	return c.cached("cnpj:"+cnpj, func() Result {
		ans, res := c.registry(ctx, "cnpj", cnpj)
		if res != nil {
			return res
		}
		return Entity{Name: ans.Nome, Address: ans.Endereco.address()}
	})
}

// registry calls {base}/api/{kind}?{kind}={digits}. A non-nil Result means the
// lookup ended without an answer to decode.
func (c *Client) registry(ctx context.Context, kind, digits string) (*registryAnswer, Result) {
	if c.baseURL == "" {
		return nil, Failure{Err: ErrNotConfigured}
	}
	u := fmt.Sprintf("%s/api/%s?%s", strings.TrimSuffix(c.baseURL, "/"), kind, url.Values{kind: {digits}}.Encode())

	var ans registryAnswer
	found, fail := c.get(ctx, u, &ans)
	if fail != nil {
		return nil, *fail
	}
	if !found {
		return nil, NotFound{Query: digits}
	}
	return &ans, nil
}
