package main

import (
	"fmt"

	"github.com/trezcool/garderie/apps/api/echo"
	"github.com/trezcool/garderie/core"
	"github.com/trezcool/garderie/core/daycare"
)

// addGuardian creates an active daycare.Guardian and prints a token for their device.
func (cli *commandLine) addGuardian(name, uname, email string) error {
	g, err := cli.svc.CreateGuardian(daycare.Guardian{
		Name:     name,
		Username: uname,
		Email:    email,
		IsActive: true,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "guardian %s created: %s\n", g.Username, g.ID)
	return cli.printToken(g.ID)
}

func (cli *commandLine) addChild(name string, guardianIDs []string) error {
	ids := make([]string, 0, len(guardianIDs))
	for _, id := range guardianIDs {
		if id = core.CleanString(id); id != "" {
			ids = append(ids, id)
		}
	}
	c, err := cli.svc.CreateChild(daycare.NewChild{Name: name, GuardianIDs: ids})
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "child %s created: %s\n", c.Name, c.ID)
	return nil
}

func (cli *commandLine) printToken(guardianID string) error {
	g, err := cli.svc.GetGuardian(guardianID)
	if err != nil {
		return err
	}
	token, err := echoapi.GenerateToken(cli.conf, g)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "token: %s\n", token)
	return nil
}
