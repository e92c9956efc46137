package main

import (
	"fmt"

	"el-store/service"

	"github.com/spf13/cobra"
)

var adminInput service.RegisterInput

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the administrator account if there is none",
	Example: `  el-store create-admin
  el-store create-admin --login root --email root@example.com --password s3cret!`,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer st.Close()

		created, err := newService(st).CreateAdmin(cmd.Context(), adminInput)
		if err != nil {
			return err
		}
		if created {
			fmt.Fprintf(cmd.OutOrStdout(), "admin %q created\n", adminInput.Login)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "an admin or a user with this login or email already exists")
		}
		return nil
	},
}

func init() {
	f := createAdminCmd.Flags()
	f.StringVar(&adminInput.Login, "login", "admin", "Admin login")
	f.StringVar(&adminInput.DisplayName, "name", "Administrator", "Admin display name")
	f.StringVar(&adminInput.Email, "email", "admin@el-store.local", "Admin email")
	f.StringVar(&adminInput.Password, "password", "admin123", "Admin password")
}
