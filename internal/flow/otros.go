package flow

import (
	"context"
	"fmt"

	"github.com/arcosum/arcobot/internal/models"
)

// VendorPhoneOtros receives general inquiries.
const VendorPhoneOtros = "+52 222 114 8841"

// asuntoPreview truncates long inquiries for the summary card.
func asuntoPreview(asunto string) string {
	runes := []rune(asunto)
	if len(runes) <= 50 {
		return asunto
	}
	return string(runes[:50]) + "..."
}

// OtrosForm is the short general inquiry funnel.
func OtrosForm() *FormDefinition {
	return &FormDefinition{
		Division:    models.DivisionOtros,
		LeadType:    models.LeadTypeOtrosForm,
		LeadScore:   7,
		VendorPhone: VendorPhoneOtros,
		Intro:       "❓ *CONSULTA GENERAL* 📋\n\nCuéntame tu consulta y nos pondremos en contacto.",
		Fields: []FieldSpec{
			{
				Name: "nombre",
				Prompt: func(s *FormSession) string {
					return "📝 *Paso 1 de 2:* ¿Cuál es tu nombre completo?\n\n(Formato: Nombre Apellido)"
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.FullName(input)
				},
				Invalid: func(s *FormSession) string {
					return "❌ Por favor ingresa nombre y apellido válidos\n\nFormato: Juan Pérez"
				},
			},
			{
				Name: "asunto",
				Prompt: func(s *FormSession) string {
					return fmt.Sprintf("✅ Gracias, %s!\n\n📝 *Paso 2 de 2:* ¿Cuál es tu asunto o consulta?\n\nCuéntanos qué necesitas", firstName(s))
				},
				Validate: func(ctx context.Context, v *Validator, s *FormSession, input string) (string, bool) {
					return v.MinLength(input, 10)
				},
				Invalid: func(s *FormSession) string {
					return "❌ Por favor describe tu consulta con más detalle (mínimo 10 caracteres)"
				},
			},
		},
		Confirm: func(s *FormSession) string {
			return fmt.Sprintf("✅ *RESUMEN*\n\n👤 *Nombre:* %s\n📋 *Asunto:* %s\n\n¿Enviar consulta?\n✅ Sí\n❌ No",
				s.Value("nombre"), asuntoPreview(s.Value("asunto")))
		},
		Completion: func(s *FormSession) string {
			return fmt.Sprintf("✅ *¡Consulta Registrada!*\n\nTu mensaje ha sido registrado exitosamente.\n\nUn asesor se pondrá en contacto contigo en las próximas 2 horas.\n\n📱 Si es urgente:\n\n👤 *Juan Carlos*\n☎️ WhatsApp: %s\n📧 ventas-rolados@arcosum.com\n\n*Gracias por confiar en ARCOSUM* 🏭", VendorPhoneOtros)
		},
		VendorNotice: func(s *FormSession) string {
			return fmt.Sprintf("🚨 *NUEVA CONSULTA GENERAL*\n\n📱 *Cliente:* %s\n👤 *Nombre:* %s\n\n📋 *Asunto:* %s\n\n⏰ *Contactar en los próximos 30 minutos*",
				s.Phone, s.Value("nombre"), s.Value("asunto"))
		},
		Summary: func(s *FormSession) string {
			return fmt.Sprintf("Consulta general: %s", asuntoPreview(s.Value("asunto")))
		},
	}
}
